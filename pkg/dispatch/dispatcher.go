// Package dispatch fans events out to consumers without blocking the
// producer.
//
// Every subscription owns a bounded queue. When a queue is full the oldest
// queued event is overwritten: live-timing values are superseded by newer
// ones, so a slow consumer sees fresh data with gaps rather than stalling
// the feed. Each overwrite is counted and reported as a DropEvent.
package dispatch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// Dispatcher errors.
var (
	ErrClosed             = errors.New("dispatcher closed")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrDuplicateID        = errors.New("subscriber already registered")
	ErrInvalidCapacity    = errors.New("queue capacity must be positive")
)

// DefaultCapacity is the queue size used when Subscribe gets zero.
const DefaultCapacity = 256

// DropEvent reports that a subscriber's oldest queued event was overwritten.
type DropEvent struct {
	Subscriber string
	// Total is the subscriber's drop count including this one.
	Total uint64
}

func (e DropEvent) String() string {
	return fmt.Sprintf("consumer %s backpressure drop (total %d)", e.Subscriber, e.Total)
}

// Config configures a Dispatcher.
type Config struct {
	// OnDrop is called from Dispatch for every overwritten event.
	// It must not block.
	OnDrop func(DropEvent)

	// Logger receives subscription lifecycle messages. Nil disables logging.
	Logger *slog.Logger
}

// Stats summarises dispatcher activity.
type Stats struct {
	Dispatched  uint64
	Dropped     uint64
	Subscribers []SubscriberStats
}

// SubscriberStats describes one subscription.
type SubscriberStats struct {
	ID        string
	Capacity  int
	Queued    int
	Delivered uint64
	Dropped   uint64
}

// Dispatcher delivers every dispatched value to all subscriptions.
// It is safe for concurrent use.
type Dispatcher[T any] struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription[T]
	closed bool
	nextID int

	dispatched atomic.Uint64
	dropped    atomic.Uint64

	onDrop func(DropEvent)
	logger *slog.Logger
}

// New creates a Dispatcher.
func New[T any](cfg Config) *Dispatcher[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher[T]{
		subs:   make(map[string]*Subscription[T]),
		onDrop: cfg.OnDrop,
		logger: logger,
	}
}

// Subscribe registers a consumer with a queue of the given capacity.
// An empty id is replaced by a generated one; zero capacity means
// DefaultCapacity.
func (d *Dispatcher[T]) Subscribe(id string, capacity int) (*Subscription[T], error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if id == "" {
		d.nextID++
		id = fmt.Sprintf("consumer-%d", d.nextID)
	}
	if _, ok := d.subs[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	sub := newSubscription[T](id, capacity)
	sub.detach = func() { d.remove(id) }
	d.subs[id] = sub
	d.logger.Debug("consumer subscribed", "id", id, "capacity", capacity)
	return sub, nil
}

// Dispatch queues v for every subscriber. It never blocks on consumers.
// Dispatch after Close is a no-op.
func (d *Dispatcher[T]) Dispatch(v T) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	d.dispatched.Add(1)

	for _, sub := range d.subs {
		if !sub.push(v) {
			continue
		}
		total := sub.dropped.Add(1)
		d.dropped.Add(1)
		if d.onDrop != nil {
			d.onDrop(DropEvent{Subscriber: sub.id, Total: total})
		}
	}
}

// Unsubscribe removes and closes a subscription. Unknown ids are ignored.
func (d *Dispatcher[T]) Unsubscribe(id string) {
	d.mu.Lock()
	sub, ok := d.subs[id]
	delete(d.subs, id)
	d.mu.Unlock()

	if ok {
		sub.close()
		d.logger.Debug("consumer unsubscribed", "id", id)
	}
}

func (d *Dispatcher[T]) remove(id string) {
	d.mu.Lock()
	delete(d.subs, id)
	d.mu.Unlock()
}

// Close closes every subscription. Consumers still receive what was queued
// before Close, then ErrSubscriptionClosed.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	subs := d.subs
	d.subs = make(map[string]*Subscription[T])
	d.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Len returns the number of active subscriptions.
func (d *Dispatcher[T]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Stats returns dispatcher counters and per-subscriber state, ordered by id.
func (d *Dispatcher[T]) Stats() Stats {
	d.mu.RLock()
	subs := make([]SubscriberStats, 0, len(d.subs))
	for _, sub := range d.subs {
		subs = append(subs, sub.stats())
	}
	d.mu.RUnlock()

	slices.SortFunc(subs, func(a, b SubscriberStats) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return Stats{
		Dispatched:  d.dispatched.Load(),
		Dropped:     d.dropped.Load(),
		Subscribers: subs,
	}
}
