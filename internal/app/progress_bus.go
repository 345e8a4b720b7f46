package app

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/domain"
)

const defaultSubscriberBuffer = 256

// ProgressBus fans out task and install events to independent subscribers.
// Publish never blocks: a subscriber whose buffer is full misses the event
// and is expected to fall back to polling the queue snapshot.
type ProgressBus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	logger *zap.Logger
}

// Subscription is one observer's event stream
type Subscription struct {
	C       <-chan domain.Event
	ch      chan domain.Event
	id      uint64
	bus     *ProgressBus
	once    sync.Once
	dropped atomic.Int64
}

// NewProgressBus creates a new progress bus
func NewProgressBus(logger *zap.Logger) *ProgressBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressBus{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

// Subscribe registers an observer. Call Close on the subscription to unregister.
func (b *ProgressBus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan domain.Event, buffer)
	sub := &Subscription{C: ch, ch: ch, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers event to every subscriber without blocking
func (b *ProgressBus) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			if n := sub.dropped.Add(1); n == 1 || n%100 == 0 {
				b.logger.Warn("Dropping event for slow subscriber",
					zap.Uint64("subscriber", sub.id),
					zap.String("type", string(event.Type)),
					zap.Int64("dropped", n))
			}
		}
	}
}

// SubscriberCount returns the number of registered subscribers
func (b *ProgressBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unregisters all subscribers and closes their channels
func (b *ProgressBus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*Subscription)
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Dropped returns how many events this subscriber missed
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unregisters the subscription and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()

	s.once.Do(func() { close(s.ch) })
}
