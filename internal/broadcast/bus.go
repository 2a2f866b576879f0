package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/visiona/framecast/internal/capture"
)

var (
	ErrClosed             = errors.New("broadcast: bus is closed")
	ErrSubscriberExists   = errors.New("broadcast: subscriber already exists")
	ErrSubscriberNotFound = errors.New("broadcast: subscriber not found")
)

// SubscriberStats tracks frame delivery metrics for one subscriber.
type SubscriberStats struct {
	// Sent counts frames placed in the subscriber's mailbox
	Sent uint64
	// Replaced counts pending frames overwritten by a newer one
	Replaced uint64
}

// BusStats tracks global frame distribution metrics.
type BusStats struct {
	Published   uint64
	Subscribers map[string]SubscriberStats
}

type subscriber struct {
	id    string
	ch    chan capture.Frame
	stats SubscriberStats
}

// Bus fans frames out to subscribers, each behind a single-slot
// latest-wins mailbox. Publish is non-blocking and must only be called
// from one goroutine (the pump).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	published   uint64
	closed      bool
	cause       error
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers a subscriber and returns its receiver. Fails with
// ErrClosed once the bus has terminated and with ErrSubscriberExists on a
// duplicate id.
func (b *Bus) Subscribe(id string) (*Receiver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	sub := &subscriber{
		id: id,
		ch: make(chan capture.Frame, 1),
	}
	b.subscribers[id] = sub

	return &Receiver{bus: b, sub: sub}, nil
}

// Unsubscribe removes a subscriber and closes its mailbox.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}

	delete(b.subscribers, id)
	close(sub.ch)
	return nil
}

// Publish distributes a frame to every subscriber without blocking. A
// frame still pending in a mailbox is replaced by the newer one.
func (b *Bus) Publish(frame capture.Frame) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	atomic.AddUint64(&b.published, 1)

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- frame:
			atomic.AddUint64(&sub.stats.Sent, 1)
			continue
		default:
		}

		// Mailbox occupied: evict the stale frame, then retry once.
		// Only the publisher drains here, so at most one retry is needed.
		select {
		case <-sub.ch:
			atomic.AddUint64(&sub.stats.Replaced, 1)
		default:
		}
		select {
		case sub.ch <- frame:
			atomic.AddUint64(&sub.stats.Sent, 1)
		default:
		}
	}
}

// Close terminates the bus with ErrClosed as the cause.
func (b *Bus) Close() {
	b.CloseWithCause(nil)
}

// CloseWithCause terminates the bus, waking every blocked receiver. The
// cause is what receivers observe from Next afterwards. Idempotent; the
// first cause wins.
func (b *Bus) CloseWithCause(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.cause = cause

	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Cause returns the terminal error of a closed bus, ErrClosed if it was
// closed without one, and nil while the bus is live.
func (b *Bus) Cause() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.closed {
		return nil
	}
	if b.cause != nil {
		return b.cause
	}
	return ErrClosed
}

// Stats returns a snapshot of distribution metrics.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := BusStats{
		Published:   atomic.LoadUint64(&b.published),
		Subscribers: make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, sub := range b.subscribers {
		stats.Subscribers[id] = SubscriberStats{
			Sent:     atomic.LoadUint64(&sub.stats.Sent),
			Replaced: atomic.LoadUint64(&sub.stats.Replaced),
		}
	}
	return stats
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Receiver is one subscriber's view of the bus.
type Receiver struct {
	bus *Bus
	sub *subscriber
}

// Next blocks until a new frame is available, the context is cancelled, or
// the bus terminates. After termination it returns the bus's cause.
func (r *Receiver) Next(ctx context.Context) (capture.Frame, error) {
	select {
	case frame, ok := <-r.sub.ch:
		if !ok {
			return capture.Frame{}, r.closedErr()
		}
		return frame, nil
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	}
}

func (r *Receiver) closedErr() error {
	if cause := r.bus.Cause(); cause != nil {
		return cause
	}
	// Mailbox closed by Unsubscribe rather than bus termination.
	return ErrClosed
}

// Close unsubscribes the receiver. Safe to call after bus termination.
func (r *Receiver) Close() {
	_ = r.bus.Unsubscribe(r.sub.id)
}
