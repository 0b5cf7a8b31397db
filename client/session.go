package client

import (
	"context"
	"errors"
	"sync"

	"PChat/tools/errs"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// Session is the client state for one logged-in user: the API, the
// realtime connection, the selected conversation and local prefs. Build it
// with NewSession and drop it after Logout.
type Session struct {
	log      *zap.Logger
	api      *API
	conn     *ConnManager
	store    *Store
	prefs    *Prefs
	notifier Notifier

	mu          sync.Mutex
	user        *User
	unsubscribe func()
}

// NewSession builds a logged-out session. notifier may be nil.
func NewSession(cfg Config, notifier Notifier) (*Session, error) {
	cfg.norm()
	prefs, err := LoadPrefs(cfg.PrefsPath)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = BellNotifier{}
	}
	return &Session{
		log:      cfg.Logger.Named("session"),
		api:      NewAPI(cfg),
		conn:     NewConnManager(cfg),
		store:    NewStore(),
		prefs:    prefs,
		notifier: notifier,
	}, nil
}

func (s *Session) API() *API          { return s.api }
func (s *Session) Conn() *ConnManager { return s.conn }
func (s *Session) Store() *Store      { return s.store }
func (s *Session) Prefs() *Prefs      { return s.prefs }

func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Login authenticates and opens the realtime connection with the same
// credential. A failed connect still leaves the user logged in for
// request/response calls; the error is returned so callers can show it.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, resp)
}

func (s *Session) Signup(ctx context.Context, fullName, email, password string) (*User, error) {
	resp, err := s.api.Signup(ctx, fullName, email, password)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, resp)
}

func (s *Session) start(ctx context.Context, resp *AuthResponse) (*User, error) {
	s.api.SetToken(resp.Token)
	u := resp.User
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	s.log.Info("logged in", zap.String("user", u.ID))

	if err := s.conn.Connect(ctx, resp.Token); err != nil {
		s.log.Warn("realtime connect failed", zap.Error(err))
		return &u, err
	}
	return &u, nil
}

func (s *Session) self() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return "", ErrNotLoggedIn
	}
	return s.user.ID, nil
}

// SelectPeer switches the conversation: handlers of the previous one are
// removed first, then history is loaded for the new one.
func (s *Session) SelectPeer(ctx context.Context, peer string) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	if peer == "" || peer == self {
		return errs.ErrArgs.WrapMsg("invalid peer", "peer", peer)
	}

	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.store.Select(self, peer)
	s.unsubscribe = s.conn.Subscribe(MessageHandlers{
		OnNewMessage:     s.onNewMessage,
		OnMessageDeleted: func(id string) { s.store.ApplyDeleted(id) },
	})
	s.mu.Unlock()

	return s.Reload(ctx)
}

func (s *Session) onNewMessage(msg Message) {
	if s.store.ApplyNewMessage(msg) && s.prefs.Sound() {
		s.notifier.Notify(msg)
	}
}

// Reload refetches the selected conversation from the server.
func (s *Session) Reload(ctx context.Context) error {
	peer := s.store.Peer()
	if peer == "" {
		return ErrNoPeer
	}
	history, err := s.api.History(ctx, peer)
	if err != nil {
		return err
	}
	if s.store.Peer() == peer {
		s.store.Load(history)
	}
	return nil
}

// Send shows the message at once and reconciles it with the server's answer.
// An API failure is returned as *APIError; a failure without an answer
// discards the placeholder with ErrOptimisticConflict.
func (s *Session) Send(ctx context.Context, text, image string) (Message, error) {
	if _, err := s.self(); err != nil {
		return Message{}, err
	}
	tmp, err := s.store.BeginSend(text, image)
	if err != nil {
		return Message{}, err
	}
	msg, err := s.api.Send(ctx, tmp.ReceiverID, text, image)
	if err != nil {
		s.store.FailSend(tmp.ID)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Message{}, apiErr
		}
		s.log.Warn("send unconfirmed", zap.String("temp", tmp.ID), zap.Error(err))
		return Message{}, pkgerrors.Wrap(ErrOptimisticConflict, err.Error())
	}
	s.store.ConfirmSend(tmp.ID, *msg)
	return *msg, nil
}

// Delete removes the message from the view before asking the server. On
// failure the conversation is reloaded rather than patched back.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	if _, err := s.self(); err != nil {
		return err
	}
	if IsOptimistic(messageID) {
		return errs.ErrArgs.WrapMsg("message not sent yet", "id", messageID)
	}
	s.store.Remove(messageID)
	if err := s.api.Delete(ctx, messageID); err != nil {
		if rerr := s.Reload(ctx); rerr != nil {
			s.log.Warn("reload after failed delete", zap.Error(rerr))
		}
		return err
	}
	return nil
}

func (s *Session) Contacts(ctx context.Context) ([]User, error) {
	return s.api.Contacts(ctx)
}

func (s *Session) Chats(ctx context.Context) ([]User, error) {
	return s.api.Chats(ctx)
}

func (s *Session) Messages() []Message     { return s.store.Messages() }
func (s *Session) Online() []string        { return s.conn.Online() }
func (s *Session) IsOnline(id string) bool { return s.conn.IsOnline(id) }

func (s *Session) ToggleSound() (bool, error) {
	return s.prefs.Toggle()
}

// Logout drops handlers, closes the connection and clears presence and the
// view before the logout request goes out.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.user = nil
	s.mu.Unlock()

	_ = s.conn.Close()
	s.store.Reset()

	err := s.api.Logout(ctx)
	s.api.SetToken("")
	return err
}
