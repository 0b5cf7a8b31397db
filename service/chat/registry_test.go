package chat

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	connID string
	userID string

	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func newFake(user, conn string) *fakeHandle { return &fakeHandle{connID: conn, userID: user} }

func (f *fakeHandle) ConnID() string { return f.connID }
func (f *fakeHandle) UserID() string { return f.userID }
func (f *fakeHandle) Push(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || f.closed {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}
func (f *fakeHandle) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
func (f *fakeHandle) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func TestRegisterSupersedes(t *testing.T) {
	r := NewRegistry()
	first, second := newFake("a", "c1"), newFake("a", "c2")

	assert.Nil(t, r.Register("a", first))
	prev := r.Register("a", second)
	assert.Same(t, first, prev)
	assert.Equal(t, 1, r.Len())

	h, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "c2", h.ConnID())
	assert.False(t, first.closed, "superseded handle is not closed by the registry")
}

func TestUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	var changes int32
	r.OnChange(func() { atomic.AddInt32(&changes, 1) })

	assert.False(t, r.Unregister("ghost"))
	r.Register("a", newFake("a", "c1"))
	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"))

	assert.Equal(t, int32(2), atomic.LoadInt32(&changes))
	assert.Empty(t, r.Snapshot())
}

func TestReleaseIgnoresSupersededConn(t *testing.T) {
	r := NewRegistry()
	r.Register("a", newFake("a", "old"))
	r.Register("a", newFake("a", "new"))

	assert.False(t, r.Release("a", "old"))
	h, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "new", h.ConnID())

	assert.True(t, r.Release("a", "new"))
	_, ok = r.Lookup("a")
	assert.False(t, ok)
}

func TestSnapshotMatchesOpenConnections(t *testing.T) {
	r := NewRegistry()
	rng := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	open := map[string]bool{}

	for i := 0; i < 500; i++ {
		u := users[rng.Intn(len(users))]
		if rng.Intn(2) == 0 {
			r.Register(u, newFake(u, "c"))
			open[u] = true
		} else {
			r.Unregister(u)
			delete(open, u)
		}
		want := make([]string, 0, len(open))
		for k := range open {
			want = append(want, k)
		}
		sort.Strings(want)
		require.Equal(t, want, r.Snapshot(), "step %d", i)
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := string(rune('a' + i%4))
			for j := 0; j < 200; j++ {
				r.Register(u, newFake(u, "c"))
				_ = r.Snapshot()
				r.Lookup(u)
				r.Unregister(u)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
