package user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PChat/middleware"
	midsec "PChat/middleware/security"
	"PChat/module/user/service"
	"PChat/module/user/store"
	"PChat/service/storage"
	"PChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := service.NewUserService(store.NewMemory(), security.DefaultOptions([]byte("handler-test")), nil)
	r := gin.New()
	rt := middleware.NewRouter(r, midsec.Middleware(svc, nil))
	NewHandler(svc, storage.PassthroughImages{}, CookieConfig{}).RegisterRoutes(rt)
	return r
}

func do(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jwtCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == CookieName {
			return ck
		}
	}
	t.Fatal("jwt cookie not set")
	return nil
}

func TestSignupCheckUpdateLogout(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodPost, "/api/auth/signup", service.SignupParams{FullName: "Alice", Email: "alice@example.com", Password: "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.NotContains(t, w.Body.String(), "password")
	ck := jwtCookie(t, w)
	assert.True(t, ck.HttpOnly)

	w = do(r, http.MethodGet, "/api/auth/check", nil, ck)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.User.UserID)

	w = do(r, http.MethodPut, "/api/auth/update-profile", gin.H{"profilePic": "https://cdn.example/a.png"}, ck)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "https://cdn.example/a.png")

	w = do(r, http.MethodPut, "/api/auth/update-profile", gin.H{"profilePic": ""}, ck)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", jwtCookie(t, w).Value)
}

func TestCheckRequiresCredential(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodGet, "/api/auth/check", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":1502`)

	w = do(r, http.MethodGet, "/api/auth/check", nil, &http.Cookie{Name: CookieName, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginAndDuplicateSignup(t *testing.T) {
	r := newTestEngine(t)
	in := service.SignupParams{FullName: "Bob", Email: "bob@example.com", Password: "secret1"}
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/auth/signup", in).Code)

	w := do(r, http.MethodPost, "/api/auth/signup", in)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/auth/login", service.LoginParams{Email: "bob@example.com", Password: "nope123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/auth/login", service.LoginParams{Email: "bob@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	jwtCookie(t, w)
}
