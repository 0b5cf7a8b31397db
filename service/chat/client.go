package chat

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxInboundSize = 4096

// Client is one websocket connection. A single writer goroutine drains Send;
// the read loop only keeps the deadline alive since clients send no
// payload-bearing events.
type Client struct {
	connID string
	userID string
	ws     *websocket.Conn
	send   chan []byte
	opts   Options
	log    *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
	writeDone chan struct{}
}

func NewClient(connID, userID string, ws *websocket.Conn, opts Options, log *zap.Logger) *Client {
	return &Client{
		connID:    connID,
		userID:    userID,
		ws:        ws,
		send:      make(chan []byte, opts.SendQueue),
		opts:      opts,
		log:       log.With(zap.String("conn", connID), zap.String("user", userID)),
		closed:    make(chan struct{}),
		writeDone: make(chan struct{}),
	}
}

func (c *Client) ConnID() string { return c.connID }
func (c *Client) UserID() string { return c.userID }

func (c *Client) Push(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warn("send queue full, frame dropped", zap.Int("queue", cap(c.send)))
		return false
	}
}

// Close stops the writer, which sends a close frame and closes the socket.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.ws.Close()
		close(c.writeDone)
	}()

	for {
		select {
		case <-c.closed:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Info("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.Info("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// readPump blocks until the peer goes away or the writer closes the socket.
func (c *Client) readPump() {
	c.ws.SetReadLimit(maxInboundSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				c.log.Debug("peer closed")
			case isTimeout(err):
				c.log.Info("read timeout")
			default:
				c.log.Debug("read ended", zap.Error(err))
			}
			return
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
