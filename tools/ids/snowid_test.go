package ids

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorUniqueAcrossGoroutines(t *testing.T) {
	g := NewGenerator(7)

	const workers, per = 8, 500
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*per)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				id := g.Next()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*per)
}

func TestGeneratorEncodesNode(t *testing.T) {
	g := NewGenerator(42)
	id := g.Next()
	assert.Equal(t, int64(42), (id>>seqBits)&maxNode)
}

func TestGeneratorClockBackwards(t *testing.T) {
	g := NewGenerator(1)
	base := time.Now()
	g.now = func() time.Time { return base }
	first := g.Next()

	g.now = func() time.Time { return base.Add(-time.Second) }
	second := g.Next()

	assert.Greater(t, second, first)
}

func TestInvalidNodeFallsBack(t *testing.T) {
	g := NewGenerator(5000)
	assert.Equal(t, int64(1), g.nodeID)
}
