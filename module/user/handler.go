package user

import (
	"net/http"
	"time"

	"PChat/middleware"
	midsec "PChat/middleware/security"
	"PChat/module/user/model"
	"PChat/module/user/service"
	"PChat/service/storage"
	"PChat/tools/apiresp"
	"PChat/tools/errs"
	"PChat/tools/safe"

	"github.com/gin-gonic/gin"
)

const CookieName = "jwt"

type CookieConfig struct {
	Secure bool
	Domain string
}

// AuthResponse is returned by signup and login. Token duplicates the cookie
// for clients that cannot hold cookies.
type AuthResponse struct {
	User     model.User `json:"user"`
	Token    string     `json:"token"`
	ExpireAt time.Time  `json:"expireAt"`
}

type Handler struct {
	svc    *service.UserService
	images storage.ImageStore
	cookie CookieConfig
}

func NewHandler(svc *service.UserService, images storage.ImageStore, cookie CookieConfig) *Handler {
	safe.MustNotNil(svc, "user service")
	safe.MustNotNil(images, "image store")
	return &Handler{svc: svc, images: images, cookie: cookie}
}

// RegisterRoutes mounts /api/auth/*.
func (h *Handler) RegisterRoutes(rt *middleware.Router) {
	rt.POST("/api/auth/signup", h.Signup, middleware.RouteOpt{})
	rt.POST("/api/auth/login", h.Login, middleware.RouteOpt{})
	rt.POST("/api/auth/logout", h.Logout, middleware.RouteOpt{})
	rt.GET("/api/auth/check", h.Check, middleware.RouteOpt{IsAuth: true})
	rt.PUT("/api/auth/update-profile", h.UpdateProfile, middleware.RouteOpt{IsAuth: true})
}

func (h *Handler) setCookie(c *gin.Context, token string, exp time.Time) {
	maxAge := int(time.Until(exp).Seconds())
	if token == "" {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}

func (h *Handler) writeSession(c *gin.Context, status int, sess *service.Session) {
	h.setCookie(c, sess.Token, sess.ExpireAt)
	c.JSON(status, AuthResponse{User: sess.User.Public(), Token: sess.Token, ExpireAt: sess.ExpireAt})
}

func (h *Handler) Signup(c *gin.Context) {
	var in service.SignupParams
	if err := c.ShouldBindJSON(&in); err != nil {
		apiresp.Error(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	sess, err := h.svc.Signup(c.Request.Context(), in)
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	h.writeSession(c, http.StatusCreated, sess)
}

func (h *Handler) Login(c *gin.Context) {
	var in service.LoginParams
	if err := c.ShouldBindJSON(&in); err != nil {
		apiresp.Error(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	sess, err := h.svc.Login(c.Request.Context(), in)
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	h.writeSession(c, http.StatusOK, sess)
}

func (h *Handler) Logout(c *gin.Context) {
	h.setCookie(c, "", time.Time{})
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) Check(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

type updateProfileReq struct {
	ProfilePic string `json:"profilePic"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var in updateProfileReq
	if err := c.ShouldBindJSON(&in); err != nil {
		apiresp.Error(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	ctx := c.Request.Context()
	ref, err := h.images.Put(ctx, in.ProfilePic)
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	u, err := h.svc.UpdateProfilePic(ctx, midsec.UserID(c), ref)
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, u.Public())
}
