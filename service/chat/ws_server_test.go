package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PChat/module/message/model"
	"PChat/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenResolver map[string]string

func (m tokenResolver) ResolveIdentity(_ context.Context, credential string) (string, error) {
	if u, ok := m[credential]; ok {
		return u, nil
	}
	return "", errs.ErrTokenInvalid.Wrap()
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := NewServer(tokenResolver{"ta": "alice", "tb": "bob"}, nil, Options{PingInterval: time.Second})
	r := gin.New()
	r.GET("/ws", s.HandleWS)
	r.GET("/api/presence", s.HandlePresence)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		s.Shutdown()
		ts.Close()
	})
	return s, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := ParseFrame(raw)
	require.NoError(t, err)
	return f
}

// waitPresence reads frames until a presence-update equal to want arrives.
func waitPresence(t *testing.T, conn *websocket.Conn, want []string) {
	t.Helper()
	for i := 0; i < 10; i++ {
		f := readFrame(t, conn)
		if f.Event != EventPresenceUpdate {
			continue
		}
		var users []string
		require.NoError(t, json.Unmarshal(f.Data, &users))
		if assert.ObjectsAreEqual(want, users) {
			return
		}
	}
	t.Fatalf("presence %v never arrived", want)
}

func TestHandshakeRejected(t *testing.T) {
	s, ts := newTestServer(t)

	for name, header := range map[string]http.Header{
		"missing": {},
		"invalid": {"Authorization": []string{"Bearer nope"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			var body errs.CodeError
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.True(t, errs.ErrToken.Is(&body))
		})
	}
	assert.Zero(t, s.Registry().Len())
}

func TestPresenceAndRelayEndToEnd(t *testing.T) {
	s, ts := newTestServer(t)

	a := dial(t, ts, "ta")
	waitPresence(t, a, []string{"alice"})

	// cookie credential works too
	h := http.Header{}
	h.Set("Cookie", "jwt=tb")
	b, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	require.NoError(t, err)
	_ = resp.Body.Close()
	waitPresence(t, b, []string{"alice", "bob"})
	waitPresence(t, a, []string{"alice", "bob"})

	msg := &model.Message{ID: "100", SenderID: "alice", ReceiverID: "bob", Text: "hi", CreatedAt: time.Now().UTC()}
	require.True(t, s.Relay().RelayNewMessage(msg))
	f := readFrame(t, b)
	require.Equal(t, EventNewMessage, f.Event)
	var got model.Message
	require.NoError(t, json.Unmarshal(f.Data, &got))
	assert.Equal(t, "100", got.ID)
	assert.Equal(t, "hi", got.Text)

	require.True(t, s.Relay().RelayMessageDeleted("100", "bob"))
	f = readFrame(t, b)
	assert.Equal(t, EventMessageDeleted, f.Event)
	assert.JSONEq(t, `{"messageId":"100"}`, string(f.Data))

	// bob leaves: alice sees a set without bob
	require.NoError(t, b.Close())
	waitPresence(t, a, []string{"alice"})
	assert.False(t, s.Relay().RelayNewMessage(msg))
}

func TestReconnectSupersedes(t *testing.T) {
	s, ts := newTestServer(t)

	first := dial(t, ts, "ta")
	waitPresence(t, first, []string{"alice"})
	h1, ok := s.Registry().Lookup("alice")
	require.True(t, ok)

	second := dial(t, ts, "ta")
	waitPresence(t, second, []string{"alice"})
	h2, ok := s.Registry().Lookup("alice")
	require.True(t, ok)
	assert.NotEqual(t, h1.ConnID(), h2.ConnID())
	assert.Equal(t, 1, s.Registry().Len())

	// the superseded socket closing must not evict the new one
	require.NoError(t, first.Close())
	assert.Never(t, func() bool {
		_, ok := s.Registry().Lookup("alice")
		return !ok
	}, 300*time.Millisecond, 20*time.Millisecond)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/presence", nil)
	r := gin.New()
	r.GET("/api/presence", s.HandlePresence)
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"online":["alice"]}`, w.Body.String())
}
