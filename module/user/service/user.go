package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"PChat/logger"
	"PChat/module/user/model"
	"PChat/module/user/store"
	"PChat/tools/errs"
	"PChat/tools/ids"
	"PChat/tools/security"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	bcryptCost     = 10

	// BizUserSignup is the event route the welcome mail sender listens on.
	BizUserSignup = "user.signup"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// EventPublisher is satisfied by natsx.Producer.
type EventPublisher interface {
	PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error
}

type SignupParams struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is an authenticated user plus the credential that proves it.
type Session struct {
	User     *model.User
	Token    string
	ExpireAt time.Time
}

// SignupEvent is published after an account is created.
type SignupEvent struct {
	UserID   string    `json:"userId"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
	At       time.Time `json:"at"`
}

type UserService struct {
	users  store.Store
	jwt    security.Options
	events EventPublisher
	log    *zap.Logger
}

// NewUserService wires the account service. events may be nil.
func NewUserService(users store.Store, jwt security.Options, events EventPublisher) *UserService {
	return &UserService{
		users:  users,
		jwt:    jwt,
		events: events,
		log:    logger.Named("user"),
	}
}

func (s *UserService) Signup(ctx context.Context, in SignupParams) (*Session, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FullName == "" || in.Email == "" || in.Password == "" {
		return nil, errs.ErrArgs.WrapMsg("all fields are required")
	}
	if len(in.Password) < minPasswordLen {
		return nil, errs.ErrArgs.WrapMsg("password must be at least 6 characters long")
	}
	if !emailRegex.MatchString(in.Email) {
		return nil, errs.ErrArgs.WrapMsg("invalid email address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, errs.WrapMsg(err, "hash password")
	}
	now := time.Now().UTC()
	u := &model.User{
		UserID:     ids.GenerateString(),
		FullName:   in.FullName,
		Email:      in.Email,
		Password:   string(hash),
		CreateTime: now,
		UpdateTime: now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.publishSignup(ctx, u)
	return sess, nil
}

func (s *UserService) Login(ctx context.Context, in LoginParams) (*Session, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, errs.ErrArgs.WrapMsg("all fields are required")
	}
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errs.ErrUserNotFound.Is(err) {
			return nil, errs.ErrArgs.WrapMsg("invalid credentials")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(in.Password)) != nil {
		return nil, errs.ErrArgs.WrapMsg("invalid credentials")
	}
	return s.issue(u)
}

func (s *UserService) issue(u *model.User) (*Session, error) {
	token, exp, err := security.Generate(s.jwt, u.UserID)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token, ExpireAt: exp}, nil
}

// ResolveIdentity maps a session credential to a user id. The credential must
// verify and its subject must still exist.
func (s *UserService) ResolveIdentity(ctx context.Context, credential string) (string, error) {
	claims, err := security.Verify(s.jwt, credential)
	if err != nil {
		return "", err
	}
	ok, err := s.users.Exists(ctx, claims.UserID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errs.ErrUserNotFound.WrapMsg("credential subject no longer exists", "userID", claims.UserID)
	}
	return claims.UserID, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *UserService) Contacts(ctx context.Context, userID string) ([]*model.User, error) {
	return s.users.ListExcept(ctx, userID)
}

func (s *UserService) FindByIDs(ctx context.Context, userIDs []string) ([]*model.User, error) {
	return s.users.FindByIDs(ctx, userIDs)
}

func (s *UserService) Exists(ctx context.Context, userID string) (bool, error) {
	return s.users.Exists(ctx, userID)
}

func (s *UserService) UpdateProfilePic(ctx context.Context, userID, pic string) (*model.User, error) {
	if strings.TrimSpace(pic) == "" {
		return nil, errs.ErrArgs.WrapMsg("profile picture is required")
	}
	return s.users.UpdateProfilePic(ctx, userID, pic)
}

// publishSignup never fails the signup; the mail hook is best effort.
func (s *UserService) publishSignup(ctx context.Context, u *model.User) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(SignupEvent{UserID: u.UserID, FullName: u.FullName, Email: u.Email, At: u.CreateTime})
	if err != nil {
		s.log.Warn("marshal signup event", zap.Error(err))
		return
	}
	if err := s.events.PublishOnce(ctx, BizUserSignup, body, nil, "signup-"+u.UserID); err != nil {
		s.log.Warn("publish signup event", zap.String("userID", u.UserID), zap.Error(err))
	}
}
