package natsx

import (
	"context"
	"strings"
	"sync"
	"time"

	"PChat/logger"
	"PChat/tools/errs"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Mode int

const (
	Core      Mode = iota // fire and forget
	JetStream             // persisted, Nats-Msg-Id dedup
)

// Route binds a business name to a subject.
type Route struct {
	Biz     string
	Subject string
	Mode    Mode
	Queue   string // queue group for consumers, empty means broadcast
	Durable string // JetStream durable consumer name
}

type Config struct {
	Servers       []string
	Name          string
	User          string
	Password      string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Client owns one NATS connection plus the biz routes registered on it.
type Client struct {
	cfg Config
	nc  *nats.Conn
	js  nats.JetStreamContext
	log *zap.Logger

	mu     sync.RWMutex
	routes map[string]Route
	subs   map[string]*nats.Subscription
}

func Connect(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	log := logger.Named("nats")
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "servers", cfg.Servers)
	}
	return &Client{
		cfg:    cfg,
		nc:     nc,
		log:    log,
		routes: make(map[string]Route),
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Close drains subscriptions and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for biz, sub := range c.subs {
		_ = sub.Drain()
		delete(c.subs, biz)
	}
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}

func (c *Client) ensureJS() error {
	if c.js != nil {
		return nil
	}
	js, err := c.nc.JetStream()
	if err != nil {
		return errs.WrapMsg(err, "init jetstream")
	}
	c.js = js
	return nil
}

func (c *Client) RegisterRoute(r Route) error {
	if r.Biz == "" || r.Subject == "" {
		return errs.ErrArgs.WrapMsg("invalid route", "biz", r.Biz, "subject", r.Subject)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.Mode == JetStream {
		if err := c.ensureJS(); err != nil {
			return err
		}
	}
	c.routes[r.Biz] = r
	return nil
}

func (c *Client) route(biz string) (Route, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.routes[biz]
	return r, ok
}

func newMsg(subject string, data []byte, hdr map[string]string) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	return msg
}

func (c *Client) send(ctx context.Context, r Route, data []byte, hdr map[string]string) error {
	msg := newMsg(r.Subject, data, hdr)
	if r.Mode == JetStream {
		ack, err := c.js.PublishMsg(msg, nats.Context(ctx))
		if err != nil {
			return errs.WrapMsg(err, "jetstream publish", "subject", r.Subject)
		}
		c.log.Debug("published", zap.String("stream", ack.Stream), zap.Uint64("seq", ack.Sequence))
		return nil
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		return errs.WrapMsg(err, "publish", "subject", r.Subject)
	}
	return nil
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
