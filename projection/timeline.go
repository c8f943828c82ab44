// Package projection builds read models from the event stream.
// It never mutates viewer or queue state.
package projection

import (
	"stream-lab/domain"
	"sync"
)

const DefaultTimelineSize = 100

// Timeline keeps the latest broadcast envelopes, oldest first.
type Timeline struct {
	mu    sync.Mutex
	items []domain.Envelope
	head  int
	size  int
}

func NewTimeline(capacity int) *Timeline {
	if capacity <= 0 {
		capacity = DefaultTimelineSize
	}
	return &Timeline{items: make([]domain.Envelope, capacity)}
}

func (t *Timeline) Append(e domain.Envelope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := (t.head + t.size) % len(t.items)
	if t.size == len(t.items) {
		t.head = (t.head + 1) % len(t.items)
	} else {
		t.size++
	}
	t.items[idx] = e
}

func (t *Timeline) Recent() []domain.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Envelope, 0, t.size)
	for i := 0; i < t.size; i++ {
		out = append(out, t.items[(t.head+i)%len(t.items)])
	}
	return out
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}
