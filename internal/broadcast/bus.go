// Package broadcast provides the fan-out channel between the scheduling
// core and its delivery transports. Producers publish without ever
// blocking; each subscriber owns a bounded channel and slow subscribers
// lose messages rather than stall the pipeline.
package broadcast

import (
	"sync"
	"sync/atomic"
)

// Bus is a non-blocking multi-subscriber broadcast channel
type Bus[T any] struct {
	mu          sync.RWMutex
	subscribers map[int]chan T
	nextID      int
	bufferSize  int
	closed      bool
	dropped     atomic.Uint64
}

// NewBus creates a bus whose subscriber channels hold bufferSize messages
func NewBus[T any](bufferSize int) *Bus[T] {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Bus[T]{
		subscribers: make(map[int]chan T),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// removes the subscription and closes its channel; it is idempotent.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan T, b.bufferSize)
	b.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers msg to every subscriber without blocking. Messages to
// subscribers with full channels are dropped and counted.
func (b *Bus[T]) Publish(msg T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Bus[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many messages were lost to full subscriber channels
func (b *Bus[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
