package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"PChat/tools/errs"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	cookieName = "jwt"
	writeWait  = 5 * time.Second
	maxFrame   = 1 << 20
)

// ConnManager owns the single realtime connection of a session. One run
// goroutine reads frames and performs reconnection, so every callback it
// fires is serialised.
//
// Handlers may call Close or Connect. Each Close or Connect starts a new
// generation; callbacks of an older generation are not started again.
type ConnManager struct {
	cfg    Config
	log    *zap.Logger
	dialer *websocket.Dialer

	mu     sync.Mutex
	gen    uint64
	calls  int
	state  State
	token  string
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	online []string

	hmu            sync.RWMutex
	onState        func(StateEvent)
	onConnected    func()
	onDisconnected func(reason error)
	onPresence     func(online []string)
	subs           map[int]*subscription
	nextSub        int
}

func NewConnManager(cfg Config) *ConnManager {
	cfg.norm()
	return &ConnManager{
		cfg: cfg,
		log: cfg.Logger.Named("conn"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		subs: make(map[int]*subscription),
	}
}

func (c *ConnManager) OnStateChange(fn func(StateEvent)) { c.setHandler(func() { c.onState = fn }) }
func (c *ConnManager) OnConnected(fn func())             { c.setHandler(func() { c.onConnected = fn }) }
func (c *ConnManager) OnDisconnected(fn func(error))     { c.setHandler(func() { c.onDisconnected = fn }) }
func (c *ConnManager) OnPresence(fn func([]string))      { c.setHandler(func() { c.onPresence = fn }) }

func (c *ConnManager) setHandler(set func()) {
	c.hmu.Lock()
	set()
	c.hmu.Unlock()
}

// Subscribe registers conversation scoped handlers. After the returned
// cancel func returns no handler of this subscription runs again; do not
// call it from inside one of those handlers.
func (c *ConnManager) Subscribe(h MessageHandlers) (cancel func()) {
	sub := &subscription{h: h}
	c.hmu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = sub
	c.hmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.hmu.Lock()
			delete(c.subs, id)
			c.hmu.Unlock()
			sub.cancel()
		})
	}
}

func (c *ConnManager) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Online is the last presence set received, sorted.
func (c *ConnManager) Online() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.online))
	copy(out, c.online)
	return out
}

func (c *ConnManager) IsOnline(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := sort.SearchStrings(c.online, userID)
	return i < len(c.online) && c.online[i] == userID
}

// Connect opens the realtime connection with token. Any connection already
// held is closed first so the server never sees two from this session. A
// rejected credential returns an error matching ErrAuthRejected and leaves
// the manager disconnected. A Close that lands before the connection is
// up makes Connect return ErrConnectAborted with nothing left open.
func (c *ConnManager) Connect(ctx context.Context, token string) error {
	if err := c.Close(); err != nil {
		return err
	}

	dctx, dcancel := context.WithCancel(ctx)
	defer dcancel()
	c.mu.Lock()
	gen := c.gen
	c.token = token
	c.cancel = dcancel
	c.mu.Unlock()
	c.setState(gen, StateConnecting, nil)

	ws, err := c.dial(dctx)
	if err != nil {
		if !c.current(gen) {
			return pkgerrors.Wrap(ErrConnectAborted, err.Error())
		}
		c.setState(gen, StateDisconnected, err)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		cancel()
		_ = ws.Close()
		return ErrConnectAborted
	}
	c.conn, c.cancel, c.done = ws, cancel, done
	c.mu.Unlock()

	c.setState(gen, StateConnected, nil)
	c.callback(gen, c.fireConnected)
	go c.run(runCtx, gen, ws, done)
	if !c.current(gen) {
		return ErrConnectAborted
	}
	return nil
}

// Close tears the connection down synchronously and clears presence. No
// handler starts after Close returns. Called from a handler, Close does not
// wait for the run goroutine, which exits once that handler returns.
func (c *ConnManager) Close() error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	cancel, conn, done := c.cancel, c.conn, c.done
	c.cancel, c.conn, c.done = nil, nil, nil
	if cancel != nil {
		cancel()
	}
	inCallback := c.calls > 0
	c.online = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client close"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	if done != nil && !inCallback {
		<-done
	}
	c.setState(gen, StateDisconnected, nil)
	return nil
}

func (c *ConnManager) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *ConnManager) run(ctx context.Context, gen uint64, ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		err := c.readLoop(gen, ws)
		_ = ws.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("connection dropped", zap.Error(err))
		c.setState(gen, StateReconnecting, pkgerrors.Wrap(ErrTransportDropped, err.Error()))

		next, err := c.reconnect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("giving up on reconnect", zap.Error(err))
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			c.clearPresence(gen)
			c.setState(gen, StateDisconnected, err)
			c.callback(gen, func() { c.fireDisconnected(err) })
			return
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = next.Close()
			return
		}
		c.conn = next
		c.mu.Unlock()
		ws = next
		c.setState(gen, StateConnected, nil)
		c.callback(gen, c.fireConnected)
	}
}

// reconnect retries dial with capped exponential backoff. Auth rejection
// stops retrying at once; running out of attempts yields ErrTransportDropped.
func (c *ConnManager) reconnect(ctx context.Context) (*websocket.Conn, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.InitialBackoff
	eb.MaxInterval = c.cfg.MaxBackoff
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, c.cfg.MaxRetries), ctx)

	var (
		ws      *websocket.Conn
		attempt int
	)
	op := func() error {
		attempt++
		conn, err := c.dial(ctx)
		if err != nil {
			if errors.Is(err, ErrAuthRejected) {
				return backoff.Permanent(err)
			}
			return err
		}
		ws = conn
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Info("reconnect failed", zap.Int("attempt", attempt), zap.Duration("retryIn", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if errors.Is(err, ErrAuthRejected) || ctx.Err() != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrapf(ErrTransportDropped, "%d attempts: %v", attempt, err)
	}
	return ws, nil
}

// dial presents the session credential both as the cookie and as a Bearer
// header. A 401 answer maps to ErrAuthRejected.
func (c *ConnManager) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := c.cfg.wsURL()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return nil, pkgerrors.Wrap(ErrAuthRejected, "no credential")
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("Cookie", (&http.Cookie{Name: cookieName, Value: token}).String())

	ws, resp, err := c.dialer.DialContext(ctx, u, h)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, pkgerrors.Wrap(ErrAuthRejected, rejectReason(resp))
		}
		return nil, errs.WrapMsg(err, "dial", "url", u)
	}
	ws.SetReadLimit(maxFrame)
	return ws, nil
}

func rejectReason(resp *http.Response) string {
	var ce errs.CodeError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if json.Unmarshal(raw, &ce) == nil && ce.Msg != "" {
		return ce.Msg
	}
	return resp.Status
}

// readLoop returns when ws fails. Server pings extend the read deadline.
func (c *ConnManager) readLoop(gen uint64, ws *websocket.Conn) error {
	extend := func() { _ = ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)) }
	extend()
	ws.SetPingHandler(func(data string) error {
		extend()
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		var ne net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil
		}
		return err
	})
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		extend()
		c.callback(gen, func() { c.dispatch(gen, raw) })
	}
}

func (c *ConnManager) dispatch(gen uint64, raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.log.Warn("bad frame", zap.Error(err))
		return
	}
	switch f.Event {
	case EventPresenceUpdate:
		var online []string
		if err := json.Unmarshal(f.Data, &online); err != nil {
			c.log.Warn("bad presence frame", zap.Error(err))
			return
		}
		c.setPresence(gen, online)
	case EventNewMessage:
		var msg Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			c.log.Warn("bad message frame", zap.Error(err))
			return
		}
		c.each(func(h MessageHandlers) {
			if h.OnNewMessage != nil {
				h.OnNewMessage(msg)
			}
		})
	case EventMessageDeleted:
		var ev deletedEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil || ev.MessageID == "" {
			c.log.Warn("bad delete frame", zap.ByteString("data", f.Data))
			return
		}
		c.each(func(h MessageHandlers) {
			if h.OnMessageDeleted != nil {
				h.OnMessageDeleted(ev.MessageID)
			}
		})
	default:
		c.log.Debug("unknown event", zap.String("event", f.Event))
	}
}

func (c *ConnManager) each(fn func(MessageHandlers)) {
	c.hmu.RLock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]*subscription, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	c.hmu.RUnlock()
	for _, s := range subs {
		s.do(fn)
	}
}

func (c *ConnManager) setPresence(gen uint64, online []string) {
	sorted := make([]string, len(online))
	copy(sorted, online)
	sort.Strings(sorted)
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.online = sorted
	c.mu.Unlock()
	c.callback(gen, func() { c.firePresence(sorted) })
}

// clearPresence empties the online set and tells the presence handler. Close
// clears the set itself without notifying.
func (c *ConnManager) clearPresence(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	had := len(c.online) > 0
	c.online = nil
	c.mu.Unlock()
	if had {
		c.callback(gen, func() { c.firePresence(nil) })
	}
}

// setState moves to s unless gen has been superseded.
func (c *ConnManager) setState(gen uint64, s State, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = s
	c.mu.Unlock()
	if old == s {
		return
	}
	c.log.Debug("state", zap.Stringer("from", old), zap.Stringer("to", s), zap.Error(err))
	c.callback(gen, func() {
		c.hmu.RLock()
		fn := c.onState
		c.hmu.RUnlock()
		if fn != nil {
			fn(StateEvent{Old: old, New: s, Err: err})
		}
	})
}

// callback runs fn unless gen has been superseded. Close skips waiting for
// the run goroutine while a callback is in flight.
func (c *ConnManager) callback(gen uint64, fn func()) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.calls++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.calls--
		c.mu.Unlock()
	}()
	fn()
}

func (c *ConnManager) fireConnected() {
	c.hmu.RLock()
	fn := c.onConnected
	c.hmu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *ConnManager) fireDisconnected(reason error) {
	c.hmu.RLock()
	fn := c.onDisconnected
	c.hmu.RUnlock()
	if fn != nil {
		fn(reason)
	}
}

func (c *ConnManager) firePresence(online []string) {
	c.hmu.RLock()
	fn := c.onPresence
	c.hmu.RUnlock()
	if fn != nil {
		out := make([]string, len(online))
		copy(out, online)
		fn(out)
	}
}
