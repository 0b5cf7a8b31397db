package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PresenceSink receives every full online set the broadcaster sends.
type PresenceSink interface {
	Replace(ctx context.Context, users []string) error
}

// Broadcaster pushes the whole online set to every registered connection.
// Broadcasts are serialized and read the registry at send time, so the last
// frame a client receives always matches the latest registry state.
type Broadcaster struct {
	reg  *Registry
	sink PresenceSink
	log  *zap.Logger

	mu      sync.Mutex
	mirror  chan struct{}
	timeout time.Duration
}

func NewBroadcaster(reg *Registry, sink PresenceSink, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		reg:     reg,
		sink:    sink,
		log:     log,
		mirror:  make(chan struct{}, 1),
		timeout: 3 * time.Second,
	}
}

// Broadcast sends one presence-update frame to every connection and returns
// how many accepted it.
func (b *Broadcaster) Broadcast() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	users, handles := b.reg.view()
	frame, err := BuildPresenceFrame(users)
	if err != nil {
		b.log.Error("build presence frame", zap.Error(err))
		return 0
	}
	sent := 0
	for _, h := range handles {
		if h.Push(frame) {
			sent++
		}
	}
	b.log.Debug("presence broadcast", zap.Int("online", len(users)), zap.Int("delivered", sent))

	if b.sink != nil {
		select {
		case b.mirror <- struct{}{}:
		default:
		}
	}
	return sent
}

// RunMirror copies the online set into the sink until ctx ends. Pending
// requests coalesce, and each copy reads the registry fresh.
func (b *Broadcaster) RunMirror(ctx context.Context) {
	if b.sink == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.mirror:
			cctx, cancel := context.WithTimeout(ctx, b.timeout)
			if err := b.sink.Replace(cctx, b.reg.Snapshot()); err != nil {
				b.log.Warn("presence mirror failed", zap.Error(err))
			}
			cancel()
		}
	}
}
