package ids

import (
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator hands out 63-bit snowflake ids: 41 bits of milliseconds since
// 2020-01-01, 10 bits of node, 12 bits of sequence.
type Generator struct {
	mu     sync.Mutex
	nodeID int64
	seq    int64
	lastMS int64
	now    func() time.Time
}

func NewGenerator(nodeID int64) *Generator {
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	return &Generator{nodeID: nodeID, now: time.Now}
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().Sub(epoch).Milliseconds()
	if now < g.lastMS {
		// clock moved backwards: keep issuing on the last timestamp
		now = g.lastMS
	}
	if now == g.lastMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			for now <= g.lastMS {
				time.Sleep(time.Millisecond)
				now = g.now().Sub(epoch).Milliseconds()
			}
		}
	} else {
		g.seq = 0
	}
	g.lastMS = now

	return (now&(1<<41-1))<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq
}

func (g *Generator) NextString() string {
	return strconv.FormatInt(g.Next(), 10)
}

var (
	defaultGen  *Generator
	defaultOnce sync.Once
)

func std() *Generator {
	defaultOnce.Do(func() { defaultGen = NewGenerator(1) })
	return defaultGen
}

// SetNodeID configures the process-wide generator; call it from main.
func SetNodeID(nodeID int64) {
	g := std()
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	g.mu.Lock()
	g.nodeID = nodeID
	g.mu.Unlock()
}

func Generate() int64 { return std().Next() }

func GenerateString() string { return std().NextString() }
