package bus

import (
	"log/slog"
	"stream-lab/domain/event"
	"sync"
	"time"
)

// Bus assigns sequence numbers and fans events out to bounded subscriptions.
// Publish never blocks on a consumer: a full subscription loses its oldest event.
type Bus struct {
	mu   sync.Mutex
	seq  uint64
	subs []*Subscription
	log  *slog.Logger
	now  func() time.Time
}

func New(log *slog.Logger) *Bus {
	return &Bus{log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Publish stamps e with the next sequence number and enqueues it.
// Sequence assignment and enqueue share the bus lock, so each subscription
// observes strictly increasing sequence numbers.
func (b *Bus) Publish(e event.Event) event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	e.Seq = b.seq
	if e.At.IsZero() {
		e.At = b.now()
	}
	for _, s := range b.subs {
		if !s.accepts(e.Kind) {
			continue
		}
		if s.push(e) {
			b.log.Debug("Subscription full, oldest event dropped", "subscription", s.name, "seq", e.Seq)
		}
	}
	return e
}

// Subscribe registers a consumer queue of the given capacity.
// Without kinds the subscription receives every event.
func (b *Bus) Subscribe(name string, capacity int, kinds ...event.Kind) *Subscription {
	s := newSubscription(name, capacity, kinds)
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s
}

func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	for i, cur := range b.subs {
		if cur == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	s.close()
}

// LastSeq is the sequence number of the latest published event.
func (b *Bus) LastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

type SubscriptionStats struct {
	Name      string
	Len       int
	Cap       int
	Delivered uint64
	Dropped   uint64
}

func (b *Bus) Stats() []SubscriptionStats {
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	stats := make([]SubscriptionStats, 0, len(subs))
	for _, s := range subs {
		stats = append(stats, s.Stats())
	}
	return stats
}

// TotalDropped sums drops over all live subscriptions.
func (b *Bus) TotalDropped() uint64 {
	var total uint64
	for _, s := range b.Stats() {
		total += s.Dropped
	}
	return total
}
