package stream

import (
	"log/slog"
	"sync"
)

// Broadcaster fans values out to independent subscribers.
type Broadcaster[T any] struct {
	logger *slog.Logger
	buffer int

	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

// NewBroadcaster creates a Broadcaster whose subscriber channels hold up to
// buffer values.
func NewBroadcaster[T any](buffer int, logger *slog.Logger) *Broadcaster[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 1
	}
	return &Broadcaster[T]{
		logger: logger,
		buffer: buffer,
		subs:   make(map[int]chan T),
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes the
// subscription and closes its channel; it is safe to call more than once.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
			b.mu.Unlock()
		})
	}

	return ch, cancel
}

// Publish delivers v to every subscriber without blocking. Subscribers with
// a full buffer miss the value.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- v:
		default:
			b.logger.Warn("subscriber buffer full, dropping value", "subscriber", id)
		}
	}
}

// Close closes every subscriber channel. Further publishes are no-ops.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
