package store

import (
	"fmt"
	"sync"
	"time"
)

// idSource issues checkpoint ids that sort strictly after every id it has
// issued before, under plain lexical comparison.
//
// A wall-clock ISO timestamp alone is not enough: two puts can land within
// one clock tick and collide or tie. Ids here are a zero-padded UnixNano
// timestamp plus a counter that advances whenever the clock has not; the
// pair is fixed-width so lexical order equals issue order.
type idSource struct {
	mu   sync.Mutex
	last int64
	seq  uint64
	now  func() time.Time // swappable for tests
}

func newIDSource() *idSource {
	return &idSource{now: time.Now}
}

// next returns a fresh id of the form "<unixnano>-<seq>", both fields
// zero-padded. When the clock reads at or before the previous issue, the
// previous timestamp is reused and only the counter advances, keeping ids
// strictly increasing even against a stalled or stepped-back clock.
func (g *idSource) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	nanos := g.now().UTC().UnixNano()
	if nanos <= g.last {
		nanos = g.last
		g.seq++
	} else {
		g.last = nanos
		g.seq = 0
	}
	return fmt.Sprintf("%020d-%08d", nanos, g.seq)
}
