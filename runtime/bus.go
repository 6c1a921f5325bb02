package runtime

import (
	"context"
	"ephemeral/contract"
	"ephemeral/domain/event"
	"ephemeral/errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBusCapacity is the per-subscriber queue depth when none is configured.
const DefaultBusCapacity = 128

// Bus is the process-wide broadcast channel. It provides best-effort fan-out
// with per-subscriber lossy backpressure: when a subscriber's queue is full,
// its oldest unread events are dropped, that subscriber only, and the loss is
// accounted so the subscriber can observe the gap. Publish never blocks.
//
// Bus is not a message broker: no durability, no retries, no cross-subscriber
// ordering beyond each subscriber seeing its own queue in publish order.
//
// Bus is safe for concurrent use by multiple goroutines.
type Bus struct {
	log      *slog.Logger
	capacity int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

var _ contract.Publisher = (*Bus)(nil)

func NewBus(log *slog.Logger, capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultBusCapacity
	}
	return &Bus{
		log:      log,
		capacity: capacity,
		subs:     make(map[uint64]*Subscription),
	}
}

// Publish fans the event out to every current subscriber without ever
// blocking on any of them.
func (b *Bus) Publish(ev event.BroadcastEvent) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	b.published.Add(1)
	for _, s := range subs {
		s.push(ev)
	}
}

// Subscribe returns an independent cursor starting at now: events published
// before the call are never seen by the new subscriber.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscription{
		id:   b.nextID,
		bus:  b,
		ch:   make(chan event.BroadcastEvent, b.capacity),
		done: make(chan struct{}),
	}
	b.nextID++

	if b.closed {
		s.closed = true
		close(s.done)
		return s
	}
	b.subs[s.id] = s
	return s
}

// Stats reports a point-in-time view of bus activity.
func (b *Bus) Stats() contract.BusStats {
	b.mu.RLock()
	subscribers := len(b.subs)
	b.mu.RUnlock()
	return contract.BusStats{
		Subscribers: subscribers,
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}

// Close detaches every subscriber. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.markClosed()
	}
}

func (b *Bus) detach(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscription is one subscriber's receive cursor.
//
// The queue is bounded by the bus capacity. A publisher finding it full
// evicts the oldest queued event and counts the loss against this
// subscription, so one stalled reader never affects anyone else.
type Subscription struct {
	id  uint64
	bus *Bus

	mu     sync.Mutex
	ch     chan event.BroadcastEvent
	done   chan struct{}
	closed bool

	dropped atomic.Uint64
}

var _ contract.EventSource = (*Subscription)(nil)

// push delivers one event, evicting the oldest queued entries if needed.
// Serialized per subscription so concurrent publishers cannot interleave
// their evictions.
func (s *Subscription) push(ev event.BroadcastEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
			s.bus.dropped.Add(1)
		default:
			// The receiver drained concurrently; retry the send.
		}
	}
}

// Receive blocks for the next event. The second return value is the number
// of events dropped for this subscription since the previous successful
// receive; a non-zero value is the detectable gap left by backpressure.
//
// Buffered events are still handed out after Close, so a subscriber can
// drain what it already had before seeing ErrSubscriptionClosed.
func (s *Subscription) Receive(ctx context.Context) (event.BroadcastEvent, uint64, error) {
	select {
	case ev := <-s.ch:
		return ev, s.dropped.Swap(0), nil
	default:
	}

	select {
	case ev := <-s.ch:
		return ev, s.dropped.Swap(0), nil
	case <-s.done:
		// A publish may have landed between the first select and closing.
		select {
		case ev := <-s.ch:
			return ev, s.dropped.Swap(0), nil
		default:
			return event.BroadcastEvent{}, s.dropped.Swap(0), errors.ErrSubscriptionClosed
		}
	case <-ctx.Done():
		return event.BroadcastEvent{}, 0, ctx.Err()
	}
}

// Dropped exposes the loss counter without consuming it.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from the bus. Idempotent.
func (s *Subscription) Close() {
	s.bus.detach(s.id)
	s.markClosed()
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}
