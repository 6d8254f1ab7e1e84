// Package events provides the lifecycle event fan-out: a lossy in-process
// broadcast bus for live observers plus a JSONL journal for later
// inspection.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tunnelward/tunnelward/internal/model"
)

// DefaultCapacity is the per-subscriber buffer. Emitters never block: a
// subscriber that falls this far behind starts losing the oldest
// undelivered messages.
const DefaultCapacity = 128

// Bus is a many-writer many-reader broadcast channel. Publish is
// non-blocking; slow subscribers are lagged, not backpressured.
type Bus struct {
	mu       sync.Mutex
	subs     map[int]chan model.Event
	nextID   int
	capacity int
	closed   bool
	dropped  uint64
}

// NewBus creates a bus. capacity <= 0 selects DefaultCapacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		subs:     make(map[int]chan model.Event),
		capacity: capacity,
	}
}

// Subscribe registers an observer. The returned cancel function must be
// called when the observer is done; it closes the channel.
func (b *Bus) Subscribe() (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan model.Event, b.capacity)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers evt to every subscriber without blocking. When a
// subscriber's buffer is full, its oldest pending event is discarded to
// make room, so observers always converge on recent state.
func (b *Bus) Publish(evt model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- evt:
			continue
		default:
		}
		// Buffer full: drop the head and retry once.
		select {
		case <-ch:
			b.dropped++
		default:
		}
		select {
		case ch <- evt:
		default:
			b.dropped++
		}
	}
}

// Dropped returns the number of events discarded due to subscriber lag.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close shuts the bus down and closes every subscriber channel. Later
// Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.dropped > 0 {
		log.Debug().Uint64("dropped", b.dropped).Msg("event bus closing with lagged deliveries")
	}
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
