package chat

import (
	"context"
	"net/http"
	"time"

	"PChat/logger"
	midsec "PChat/middleware/security"
	"PChat/tools/apiresp"
	"PChat/tools/errs"
	"PChat/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	SendQueue    int
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	// CheckOrigin filters browser handshakes; nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
}

func (o *Options) norm() {
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = 3 * o.PingInterval
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// Server is the realtime side of the chat: it authenticates websocket
// handshakes, keeps the registry, and exposes the relay to HTTP handlers.
type Server struct {
	opts     Options
	resolver midsec.IdentityResolver
	credOpts *midsec.Options
	upgrader websocket.Upgrader

	reg      *Registry
	presence *Broadcaster
	relay    *Relay
	log      *zap.Logger
}

// NewServer wires registry, broadcaster and relay. sink may be nil.
func NewServer(resolver midsec.IdentityResolver, sink PresenceSink, opts Options) *Server {
	safe.MustNotNil(resolver, "identity resolver")
	opts.norm()
	log := logger.Named("ws")
	reg := NewRegistry()
	s := &Server{
		opts:     opts,
		resolver: resolver,
		credOpts: &midsec.Options{CookieName: "jwt", EnableAuthorizationBearer: true, QueryParam: "token"},
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: opts.CheckOrigin},
		reg:      reg,
		presence: NewBroadcaster(reg, sink, logger.Named("presence")),
		relay:    NewRelay(reg, logger.Named("relay")),
		log:      log,
	}
	reg.OnChange(func() { s.presence.Broadcast() })
	return s
}

func (s *Server) Registry() *Registry { return s.reg }
func (s *Server) Relay() *Relay       { return s.relay }

// Run drives background work (the presence mirror) until ctx ends.
func (s *Server) Run(ctx context.Context) {
	s.presence.RunMirror(ctx)
}

// Online is the current online set.
func (s *Server) Online() []string { return s.reg.Snapshot() }

// HandleWS authenticates before upgrading: a rejected credential gets a 401
// CodeError body and never becomes a connection.
func (s *Server) HandleWS(c *gin.Context) {
	token := midsec.Credential(c.Request, s.credOpts)
	if token == "" {
		s.log.Info("handshake rejected: no token", zap.String("remote", c.ClientIP()))
		apiresp.Abort(c, errs.ErrTokenMissing.Wrap())
		return
	}
	userID, err := s.resolver.ResolveIdentity(c.Request.Context(), token)
	if err != nil {
		s.log.Info("handshake rejected", zap.String("remote", c.ClientIP()), zap.Error(err))
		if errs.ErrToken.Is(err) {
			apiresp.Abort(c, errs.ErrTokenInvalid.WrapMsg(err.Error()))
			return
		}
		apiresp.Abort(c, err)
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already answered the request
		s.log.Info("upgrade failed", zap.String("user", userID), zap.Error(err))
		return
	}

	cl := NewClient(uuid.NewString(), userID, ws, s.opts, s.log)
	s.log.Info("connected", zap.String("user", userID), zap.String("conn", cl.ConnID()))
	go cl.writePump()

	if prev := s.reg.Register(userID, cl); prev != nil {
		s.log.Info("connection superseded", zap.String("user", userID), zap.String("old", prev.ConnID()))
	}

	cl.readPump()

	s.reg.Release(userID, cl.ConnID())
	_ = cl.Close()
	<-cl.writeDone
	s.log.Info("disconnected", zap.String("user", userID), zap.String("conn", cl.ConnID()))
}

// HandlePresence answers GET /api/presence.
func (s *Server) HandlePresence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": s.Online()})
}

// Shutdown closes every registered connection.
func (s *Server) Shutdown() {
	_, handles := s.reg.view()
	for _, h := range handles {
		_ = h.Close()
	}
}
