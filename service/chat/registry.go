package chat

import (
	"sort"
	"sync"
)

// Handle is a live connection as seen by the registry.
type Handle interface {
	ConnID() string
	UserID() string
	// Push queues frame for delivery without blocking; false means dropped.
	Push(frame []byte) bool
	Close() error
}

// Registry maps each online user to exactly one connection. Registering a
// user again supersedes the previous handle without closing it.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]Handle

	onChange func()
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]Handle)}
}

// OnChange sets the listener fired after every effective change. It runs
// outside the registry lock and must be set before the registry is shared.
func (r *Registry) OnChange(fn func()) {
	r.onChange = fn
}

func (r *Registry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

// Register installs h for userID and returns the handle it superseded.
func (r *Registry) Register(userID string, h Handle) (prev Handle) {
	r.mu.Lock()
	prev = r.byUser[userID]
	r.byUser[userID] = h
	r.mu.Unlock()

	r.changed()
	return prev
}

// Unregister drops userID. Unknown users are a no-op.
func (r *Registry) Unregister(userID string) bool {
	r.mu.Lock()
	_, ok := r.byUser[userID]
	delete(r.byUser, userID)
	r.mu.Unlock()

	if ok {
		r.changed()
	}
	return ok
}

// Release drops userID only while it still maps to connID, so a superseded
// connection that ends late cannot evict its replacement.
func (r *Registry) Release(userID, connID string) bool {
	r.mu.Lock()
	h, ok := r.byUser[userID]
	ok = ok && h.ConnID() == connID
	if ok {
		delete(r.byUser, userID)
	}
	r.mu.Unlock()

	if ok {
		r.changed()
	}
	return ok
}

func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byUser[userID]
	return h, ok
}

// Snapshot is the sorted online set.
func (r *Registry) Snapshot() []string {
	users, _ := r.view()
	return users
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// view returns the online set and the handles to deliver to, taken under
// one lock so both describe the same instant.
func (r *Registry) view() ([]string, []Handle) {
	r.mu.RLock()
	users := make([]string, 0, len(r.byUser))
	handles := make([]Handle, 0, len(r.byUser))
	for u, h := range r.byUser {
		users = append(users, u)
		handles = append(handles, h)
	}
	r.mu.RUnlock()
	sort.Strings(users)
	return users, handles
}
