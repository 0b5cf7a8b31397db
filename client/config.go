package client

import (
	"net/url"
	"strings"
	"time"

	"PChat/tools/errs"

	"go.uber.org/zap"
)

// Config controls how the client reaches the chat server.
type Config struct {
	BaseURL string // http(s)://host:port of the server
	WSPath  string // realtime endpoint, default /ws

	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	// ReadTimeout is refreshed by every frame and server ping; set it above
	// the server ping interval.
	ReadTimeout time.Duration

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     uint64 // reconnect attempts after a drop before giving up

	// PrefsPath is the YAML preference file; empty keeps prefs in memory.
	PrefsPath string

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults. BaseURL still has to be set.
func DefaultConfig() Config {
	return Config{
		WSPath:           "/ws",
		RequestTimeout:   15 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      90 * time.Second,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       10 * time.Second,
		MaxRetries:       8,
	}
}

func (c *Config) norm() {
	d := DefaultConfig()
	if c.WSPath == "" {
		c.WSPath = d.WSPath
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// wsURL derives the realtime endpoint from BaseURL.
func (c *Config) wsURL() (string, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return "", errs.ErrArgs.WrapMsg("empty base url")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", errs.ErrArgs.WrapMsg(err.Error(), "baseURL", c.BaseURL)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errs.ErrArgs.WrapMsg("unsupported scheme", "scheme", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + c.WSPath
	return u.String(), nil
}
