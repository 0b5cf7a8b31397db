package security

import (
	"context"
	"net/http"
	"strings"

	"PChat/tools/apiresp"
	"PChat/tools/errs"

	"github.com/gin-gonic/gin"
)

// CtxUserIDKey is where Middleware stores the resolved identity.
const CtxUserIDKey = "userID"

// IdentityResolver turns a session credential into a user id.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, credential string) (string, error)
}

type Options struct {
	CookieName                string // default "jwt"
	EnableAuthorizationBearer bool   // default true
	QueryParam                string // empty disables, the ws endpoint uses "token"
}

func DefaultOptions() *Options {
	return &Options{
		CookieName:                "jwt",
		EnableAuthorizationBearer: true,
	}
}

// Credential extracts the session credential from r: cookie first, then
// Authorization: Bearer, then the query parameter.
func Credential(r *http.Request, opts *Options) string {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.CookieName != "" {
		if ck, err := r.Cookie(opts.CookieName); err == nil && strings.TrimSpace(ck.Value) != "" {
			return strings.TrimSpace(ck.Value)
		}
	}
	if opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				return strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	if opts.QueryParam != "" {
		return strings.TrimSpace(r.URL.Query().Get(opts.QueryParam))
	}
	return ""
}

// Middleware rejects requests whose credential does not resolve to a user.
func Middleware(resolver IdentityResolver, opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := Credential(c.Request, opts)
		if token == "" {
			apiresp.Abort(c, errs.ErrTokenMissing.Wrap())
			return
		}
		userID, err := resolver.ResolveIdentity(c.Request.Context(), token)
		if err != nil {
			if errs.ErrToken.Is(err) {
				// a vanished user is still an auth failure here
				apiresp.Abort(c, errs.ErrTokenInvalid.WrapMsg(err.Error()))
				return
			}
			apiresp.Abort(c, err)
			return
		}
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// UserID returns the identity stored by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
