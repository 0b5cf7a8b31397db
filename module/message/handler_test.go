package message

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"PChat/middleware"
	midsec "PChat/middleware/security"
	"PChat/module/message/model"
	"PChat/module/message/store"
	usermodel "PChat/module/user/model"
	userservice "PChat/module/user/service"
	userstore "PChat/module/user/store"
	"PChat/service/storage"
	"PChat/tools/errs"
	"PChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayCall struct {
	event string
	id    string
	to    string
}

type fakeRelay struct {
	mu    sync.Mutex
	calls []relayCall
}

func (r *fakeRelay) RelayNewMessage(msg *model.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, relayCall{"new", msg.ID, msg.ReceiverID})
	return true
}

func (r *fakeRelay) RelayMessageDeleted(id, to string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, relayCall{"deleted", id, to})
	return true
}

type failingStore struct{ store.Store }

func (failingStore) CreateMessage(context.Context, string, string, string, string) (*model.Message, error) {
	return nil, errs.ErrPersistence.WrapMsg("disk on fire")
}

type fixture struct {
	engine *gin.Engine
	relay  *fakeRelay
	msgs   store.Store
}

func newFixture(t *testing.T, msgs store.Store) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	users := userstore.NewMemory()
	now := time.Now()
	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, users.Create(context.Background(), &usermodel.User{
			UserID: id, FullName: id, Email: id + "@example.com", Password: "x", CreateTime: now, UpdateTime: now,
		}))
	}
	svc := userservice.NewUserService(users, security.DefaultOptions([]byte("msg-test")), nil)

	// X-User stands in for a resolved credential
	auth := func(c *gin.Context) {
		if u := c.GetHeader("X-User"); u != "" {
			c.Set(midsec.CtxUserIDKey, u)
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusUnauthorized)
	}
	r := gin.New()
	relay := &fakeRelay{}
	NewHandler(msgs, svc, storage.PassthroughImages{}, relay).RegisterRoutes(middleware.NewRouter(r, auth))
	return &fixture{engine: r, relay: relay, msgs: msgs}
}

func (f *fixture) do(user, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestSendPersistsThenRelays(t *testing.T) {
	f := newFixture(t, store.NewMemory())

	w := f.do("alice", http.MethodPost, "/api/messages/send/bob", SendReq{Text: "hi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var msg model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "bob", msg.ReceiverID)
	assert.NotEmpty(t, msg.ID)

	require.Len(t, f.relay.calls, 1)
	assert.Equal(t, relayCall{"new", msg.ID, "bob"}, f.relay.calls[0])

	// offline receiver still finds it in history later
	w = f.do("bob", http.MethodGet, "/api/messages/alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, store.NewMemory())

	cases := []struct {
		name   string
		to     string
		body   SendReq
		status int
	}{
		{"empty", "bob", SendReq{}, http.StatusBadRequest},
		{"self", "alice", SendReq{Text: "me"}, http.StatusBadRequest},
		{"unknown receiver", "nobody", SendReq{Text: "hi"}, http.StatusNotFound},
		{"bad image", "bob", SendReq{Image: "file:///etc/passwd"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do("alice", http.MethodPost, "/api/messages/send/"+tc.to, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, f.relay.calls)
}

func TestSendPersistenceFailureNeverRelays(t *testing.T) {
	f := newFixture(t, failingStore{store.NewMemory()})

	w := f.do("alice", http.MethodPost, "/api/messages/send/bob", SendReq{Text: "hi"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":1500`)
	assert.Empty(t, f.relay.calls)
}

func TestDeleteByEitherParticipant(t *testing.T) {
	f := newFixture(t, store.NewMemory())
	ctx := context.Background()
	m1, err := f.msgs.CreateMessage(ctx, "alice", "bob", "one", "")
	require.NoError(t, err)
	m2, err := f.msgs.CreateMessage(ctx, "alice", "bob", "two", "")
	require.NoError(t, err)

	w := f.do("carol", http.MethodDelete, "/api/messages/"+m1.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do("alice", http.MethodDelete, "/api/messages/"+m1.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do("bob", http.MethodDelete, "/api/messages/"+m2.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []relayCall{
		{"deleted", m1.ID, "bob"},
		{"deleted", m2.ID, "alice"},
	}, f.relay.calls)

	w = f.do("alice", http.MethodDelete, "/api/messages/"+m1.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContactsAndChats(t *testing.T) {
	f := newFixture(t, store.NewMemory())
	_, err := f.msgs.CreateMessage(context.Background(), "carol", "alice", "yo", "")
	require.NoError(t, err)

	w := f.do("alice", http.MethodGet, "/api/messages/contacts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var contacts []usermodel.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contacts))
	assert.Len(t, contacts, 2)
	assert.NotContains(t, w.Body.String(), "password")

	w = f.do("alice", http.MethodGet, "/api/messages/chats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var chats []usermodel.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chats))
	require.Len(t, chats, 1)
	assert.Equal(t, "carol", chats[0].UserID)

	w = f.do("", http.MethodGet, "/api/messages/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
