package bus

import (
	"context"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"sync"
)

// Subscription is a drop-oldest ring of events for one consumer.
type Subscription struct {
	name  string
	kinds map[event.Kind]struct{}

	mu        sync.Mutex
	buf       []event.Event
	head      int
	size      int
	delivered uint64
	dropped   uint64
	closed    bool

	notify chan struct{}
	done   chan struct{}
}

func newSubscription(name string, capacity int, kinds []event.Kind) *Subscription {
	if capacity <= 0 {
		capacity = 1
	}
	s := &Subscription{
		name:   name,
		buf:    make([]event.Event, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if len(kinds) > 0 {
		s.kinds = make(map[event.Kind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	return s
}

func (s *Subscription) accepts(k event.Kind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// push reports whether an older event had to be dropped.
func (s *Subscription) push(e event.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	dropped := false
	if s.size == len(s.buf) {
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		s.dropped++
		dropped = true
	}
	s.buf[(s.head+s.size)%len(s.buf)] = e
	s.size++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

// TryNext pops the oldest event without waiting.
func (s *Subscription) TryNext() (event.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size == 0 {
		return event.Event{}, false
	}
	e := s.buf[s.head]
	s.buf[s.head] = event.Event{}
	s.head = (s.head + 1) % len(s.buf)
	s.size--
	s.delivered++
	return e, true
}

// Next blocks until an event is available, the context is done or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (event.Event, error) {
	for {
		if e, ok := s.TryNext(); ok {
			return e, nil
		}
		select {
		case <-ctx.Done():
			return event.Event{}, ctx.Err()
		case <-s.done:
			return event.Event{}, errors.ErrSubscriptionClosed
		case <-s.notify:
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *Subscription) Name() string { return s.name }

func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *Subscription) Cap() int { return len(s.buf) }

func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) Delivered() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

func (s *Subscription) Stats() SubscriptionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SubscriptionStats{
		Name:      s.name,
		Len:       s.size,
		Cap:       len(s.buf),
		Delivered: s.delivered,
		Dropped:   s.dropped,
	}
}
