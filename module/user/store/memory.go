package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"PChat/module/user/model"
)

type memoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string
}

// NewMemory returns a process-local Store.
func NewMemory() Store {
	return &memoryStore{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

func (s *memoryStore) Create(_ context.Context, u *model.User) error {
	email := strings.ToLower(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return ErrEmailTaken.Wrap()
	}
	if _, ok := s.byID[u.UserID]; ok {
		return ErrEmailTaken.Wrap()
	}
	cp := *u
	s.byID[u.UserID] = &cp
	s.byEmail[email] = u.UserID
	return nil
}

func (s *memoryStore) FindByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound.Wrap()
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound.Wrap()
	}
	return s.FindByID(ctx, id)
}

func (s *memoryStore) FindByIDs(_ context.Context, ids []string) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok, nil
}

func (s *memoryStore) ListExcept(_ context.Context, id string) ([]*model.User, error) {
	s.mu.RLock()
	out := make([]*model.User, 0, len(s.byID))
	for uid, u := range s.byID {
		if uid == id {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s *memoryStore) UpdateProfilePic(_ context.Context, id, pic string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound.Wrap()
	}
	u.ProfilePic = pic
	u.UpdateTime = time.Now()
	cp := *u
	return &cp, nil
}
