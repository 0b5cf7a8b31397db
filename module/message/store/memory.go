package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"PChat/module/message/model"
	"PChat/tools/ids"
)

type memoryStore struct {
	mu   sync.RWMutex
	msgs map[string]*model.Message
	// insertion order, used as a tiebreak when createdAt collides
	seq map[string]uint64
	n   uint64
}

// NewMemory returns a process-local Store.
func NewMemory() Store {
	return &memoryStore{
		msgs: make(map[string]*model.Message),
		seq:  make(map[string]uint64),
	}
}

func (s *memoryStore) CreateMessage(_ context.Context, sender, receiver, text, image string) (*model.Message, error) {
	m := &model.Message{
		ID:         ids.GenerateString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.n++
	s.msgs[m.ID] = m
	s.seq[m.ID] = s.n
	s.mu.Unlock()
	cp := *m
	return &cp, nil
}

func (s *memoryStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[id]; !ok {
		return ErrNotFound.Wrap()
	}
	delete(s.msgs, id)
	delete(s.seq, id)
	return nil
}

func (s *memoryStore) FindMessage(_ context.Context, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, ErrNotFound.Wrap()
	}
	cp := *m
	return &cp, nil
}

func (s *memoryStore) FindMessagesBetween(_ context.Context, a, b string) ([]*model.Message, error) {
	s.mu.RLock()
	out := make([]*model.Message, 0)
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			cp := *m
			out = append(out, &cp)
		}
	}
	seq := make(map[string]uint64, len(out))
	for _, m := range out {
		seq[m.ID] = s.seq[m.ID]
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return seq[out[i].ID] < seq[out[j].ID]
	})
	return out, nil
}

func (s *memoryStore) ChatPartners(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	set := make(map[string]struct{})
	for _, m := range s.msgs {
		if m.Involves(userID) {
			set[m.Counterpart(userID)] = struct{}{}
		}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
