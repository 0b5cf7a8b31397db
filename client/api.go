package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"PChat/tools/errs"

	"github.com/go-resty/resty/v2"
)

// API wraps the request/response endpoints. The resty client keeps a cookie
// jar, so the session cookie set by login is replayed; the token is also
// sent as a Bearer header.
type API struct {
	http *resty.Client
}

func NewAPI(cfg Config) *API {
	cfg.norm()
	r := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json")
	return &API{http: r}
}

// SetToken sets or clears the Bearer credential.
func (a *API) SetToken(token string) {
	a.http.SetAuthToken(token)
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	ce := &errs.CodeError{}
	req := a.http.R().SetContext(ctx).SetError(ce)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return errs.WrapMsg(err, "request failed", "method", method, "path", path)
	}
	if resp.IsError() {
		return newAPIError(resp.StatusCode(), ce)
	}
	return nil
}

func (a *API) Signup(ctx context.Context, fullName, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	in := signupRequest{FullName: fullName, Email: email, Password: password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/signup", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Check returns the user the current credential resolves to.
func (a *API) Check(ctx context.Context) (*User, error) {
	var out User
	if err := a.do(ctx, http.MethodGet, "/api/auth/check", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) UpdateProfilePic(ctx context.Context, pic string) (*User, error) {
	var out User
	if err := a.do(ctx, http.MethodPut, "/api/auth/update-profile", map[string]string{"profilePic": pic}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Contacts(ctx context.Context) ([]User, error) {
	var out []User
	if err := a.do(ctx, http.MethodGet, "/api/messages/contacts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) Chats(ctx context.Context) ([]User, error) {
	var out []User
	if err := a.do(ctx, http.MethodGet, "/api/messages/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the conversation with peer, oldest first.
func (a *API) History(ctx context.Context, peer string) ([]Message, error) {
	var out []Message
	if err := a.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(peer), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) Send(ctx context.Context, peer, text, image string) (*Message, error) {
	var out Message
	if err := a.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(peer), sendRequest{Text: text, Image: image}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete fails unless the server acknowledges the deletion.
func (a *API) Delete(ctx context.Context, messageID string) error {
	var out deleteResponse
	if err := a.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(messageID), nil, &out); err != nil {
		return err
	}
	if !out.Success {
		return errs.ErrPersistence.WrapMsg("delete not acknowledged", "id", messageID)
	}
	return nil
}

func (a *API) Presence(ctx context.Context) ([]string, error) {
	var out presenceResponse
	if err := a.do(ctx, http.MethodGet, "/api/presence", nil, &out); err != nil {
		return nil, err
	}
	return out.Online, nil
}
