package client

import (
	"sort"
	"strings"
	"sync"
	"time"

	"PChat/tools/errs"

	"github.com/google/uuid"
)

// Store is the ordered message view of the selected conversation. It merges
// optimistic sends, send confirmations and pushed events so that every
// logical message appears exactly once. Entries are keyed by id; a
// placeholder is re-keyed when the server record replaces it.
type Store struct {
	mu    sync.Mutex
	self  string
	peer  string
	msgs  []*Message
	index map[string]*Message
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{index: make(map[string]*Message), now: time.Now}
}

// Select switches the view to the conversation between self and peer and
// empties it.
func (s *Store) Select(self, peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self, s.peer = self, peer
	s.clear()
}

func (s *Store) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// Reset forgets the conversation; used on logout.
func (s *Store) Reset() {
	s.Select("", "")
}

func (s *Store) clear() {
	s.msgs = nil
	s.index = make(map[string]*Message)
}

// Load replaces the view with history from the server, ordered by
// createdAt. Pending placeholders survive, as do pushed messages newer
// than anything in history.
func (s *Store) Load(history []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := make([]*Message, 0, len(history))
	index := make(map[string]*Message, len(history))
	for i := range history {
		m := history[i]
		if !m.between(s.self, s.peer) || index[m.ID] != nil {
			continue
		}
		m.Optimistic = false
		loaded = append(loaded, &m)
		index[m.ID] = &m
	}
	sort.SliceStable(loaded, func(i, j int) bool { return loaded[i].CreatedAt.Before(loaded[j].CreatedAt) })

	var latest time.Time
	if n := len(loaded); n > 0 {
		latest = loaded[n-1].CreatedAt
	}
	for _, m := range s.msgs {
		if index[m.ID] != nil {
			continue
		}
		if m.Optimistic || m.CreatedAt.After(latest) {
			loaded = append(loaded, m)
			index[m.ID] = m
		}
	}
	s.msgs, s.index = loaded, index
}

// BeginSend appends a placeholder for an outgoing message and returns it.
func (s *Store) BeginSend(text, image string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == "" {
		return Message{}, ErrNoPeer
	}
	if strings.TrimSpace(text) == "" && strings.TrimSpace(image) == "" {
		return Message{}, errs.ErrArgs.WrapMsg("text or image is required")
	}
	m := &Message{
		ID:         TempIDPrefix + uuid.NewString(),
		SenderID:   s.self,
		ReceiverID: s.peer,
		Text:       text,
		Image:      image,
		CreatedAt:  s.now(),
		Optimistic: true,
	}
	s.msgs = append(s.msgs, m)
	s.index[m.ID] = m
	return *m, nil
}

// ConfirmSend swaps the placeholder tempID for the server record in place.
// If the record is already present the placeholder is dropped instead.
func (s *Store) ConfirmSend(tempID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Optimistic = false
	placeholder := s.index[tempID]
	_, known := s.index[msg.ID]

	switch {
	case placeholder != nil && known:
		s.remove(tempID)
	case placeholder != nil:
		delete(s.index, tempID)
		*placeholder = msg
		s.index[msg.ID] = placeholder
	case known:
	case msg.between(s.self, s.peer):
		// placeholder lost to a reload or to a push of an identical message
		s.push(msg)
	}
}

// FailSend discards the placeholder; the view returns to its pre-send state.
func (s *Store) FailSend(tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(tempID)
}

// ApplyNewMessage merges a pushed message. It reports whether the message
// is a new incoming one from the selected peer, the only case that warrants
// a notification cue. Messages of other conversations are dropped.
func (s *Store) ApplyNewMessage(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == "" || IsOptimistic(msg.ID) || s.index[msg.ID] != nil {
		return false
	}
	msg.Optimistic = false
	switch {
	case msg.SenderID == s.peer && msg.ReceiverID == s.self:
		s.push(msg)
		return true
	case msg.SenderID == s.self && msg.ReceiverID == s.peer:
		if p := s.oldestPlaceholder(&msg); p != nil {
			delete(s.index, p.ID)
			*p = msg
			s.index[msg.ID] = p
			return false
		}
		s.push(msg)
	}
	return false
}

// ApplyDeleted removes a message deleted by either participant. Unknown ids
// are ignored.
func (s *Store) ApplyDeleted(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(messageID)
}

// Remove takes a message out ahead of a delete request and returns it.
func (s *Store) Remove(messageID string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.index[messageID]
	if m == nil {
		return Message{}, false
	}
	out := *m
	s.remove(messageID)
	return out, true
}

// Messages returns a copy of the ordered view.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = *m
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func (s *Store) push(msg Message) {
	m := &msg
	s.msgs = append(s.msgs, m)
	s.index[m.ID] = m
}

func (s *Store) remove(id string) bool {
	m := s.index[id]
	if m == nil {
		return false
	}
	delete(s.index, id)
	for i, x := range s.msgs {
		if x == m {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) oldestPlaceholder(msg *Message) *Message {
	for _, m := range s.msgs {
		if m.Optimistic && m.sameContent(msg) {
			return m
		}
	}
	return nil
}
