package emit

import (
	"sync"
)

// BufferedEmitter decouples event producers from a slow backend.
//
// Emit enqueues onto a bounded channel and returns immediately; a single
// background goroutine drains the channel into the wrapped emitter. When
// the buffer is full the event is dropped rather than blocking the
// workflow; Dropped reports how many were lost.
type BufferedEmitter struct {
	inner   Emitter
	events  chan Event
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	dropped int64
}

// NewBufferedEmitter wraps inner with a buffer of the given size
// (minimum 1) and starts the drain goroutine.
func NewBufferedEmitter(inner Emitter, size int) *BufferedEmitter {
	if size < 1 {
		size = 1
	}
	b := &BufferedEmitter{
		inner:  inner,
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
	go b.drain()
	return b
}

func (b *BufferedEmitter) drain() {
	for ev := range b.events {
		b.inner.Emit(ev)
	}
	close(b.done)
}

func (b *BufferedEmitter) Emit(event Event) {
	select {
	case b.events <- event:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (b *BufferedEmitter) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close flushes buffered events into the wrapped emitter and stops the
// drain goroutine. Emit must not be called after Close.
func (b *BufferedEmitter) Close() {
	b.once.Do(func() {
		close(b.events)
		<-b.done
	})
}
