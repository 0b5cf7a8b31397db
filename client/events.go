package client

import (
	"encoding/json"
	"sync"
)

// Server to client realtime events.
const (
	EventPresenceUpdate = "presence-update"
	EventNewMessage     = "new-message"
	EventMessageDeleted = "message-deleted"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type deletedEvent struct {
	MessageID string `json:"messageId"`
}

// MessageHandlers are the conversation scoped callbacks registered through
// ConnManager.Subscribe. Nil fields are skipped.
type MessageHandlers struct {
	OnNewMessage     func(Message)
	OnMessageDeleted func(messageID string)
}

type subscription struct {
	mu   sync.Mutex
	h    MessageHandlers
	dead bool
}

// do runs fn unless the subscription was cancelled. Holding mu while fn
// runs means cancel returns only after an in-flight callback finished.
func (s *subscription) do(fn func(h MessageHandlers)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dead {
		fn(s.h)
	}
}

func (s *subscription) cancel() {
	s.mu.Lock()
	s.dead = true
	s.mu.Unlock()
}
