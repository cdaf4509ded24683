package dispatch

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// Subscription is one consumer's queue. Values are read with Next or All
// from a single goroutine.
type Subscription[T any] struct {
	id string

	mu     sync.Mutex
	buf    []T
	head   int
	count  int
	closed bool

	notify chan struct{}
	done   chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64

	detach func()
}

func newSubscription[T any](id string, capacity int) *Subscription[T] {
	return &Subscription[T]{
		id:     id,
		buf:    make([]T, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the subscriber id.
func (s *Subscription[T]) ID() string {
	return s.id
}

// push queues v and reports whether the oldest value was overwritten.
func (s *Subscription[T]) push(v T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	idx := (s.head + s.count) % len(s.buf)
	s.buf[idx] = v
	overwrote := s.count == len(s.buf)
	if overwrote {
		s.head = (s.head + 1) % len(s.buf)
	} else {
		s.count++
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return overwrote
}

// pop removes the oldest queued value.
func (s *Subscription[T]) pop() (T, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.count == 0 {
		return zero, false, s.closed
	}
	v := s.buf[s.head]
	s.buf[s.head] = zero
	s.head = (s.head + 1) % len(s.buf)
	s.count--
	return v, true, s.closed
}

// TryNext returns the oldest queued value without waiting.
func (s *Subscription[T]) TryNext() (T, bool) {
	v, ok, _ := s.pop()
	if ok {
		s.delivered.Add(1)
	}
	return v, ok
}

// Next waits for the next value. It returns ErrSubscriptionClosed once the
// subscription is closed and drained, or the context error.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	for {
		v, ok, closed := s.pop()
		if ok {
			s.delivered.Add(1)
			return v, nil
		}
		if closed {
			var zero T
			return zero, ErrSubscriptionClosed
		}

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// All returns a sequence of queued values that ends when the subscription
// is closed or ctx is done.
func (s *Subscription[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Len returns the number of queued values.
func (s *Subscription[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Dropped returns how many values were overwritten before being read.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from its dispatcher.
func (s *Subscription[T]) Close() {
	if s.detach != nil {
		s.detach()
	}
	s.close()
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *Subscription[T]) stats() SubscriberStats {
	s.mu.Lock()
	queued := s.count
	s.mu.Unlock()
	return SubscriberStats{
		ID:        s.id,
		Capacity:  len(s.buf),
		Queued:    queued,
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
	}
}
