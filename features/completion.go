package features

import (
	"context"
	"fmt"
	"log/slog"
	"stream-lab/domain"
	"stream-lab/errors"

	"github.com/google/uuid"
)

// QueueOwner is a handler owning a work queue, music or TTS.
type QueueOwner interface {
	ownQueue() *workQueue
}

func (m *Music) ownQueue() *workQueue { return m.queue }
func (t *TTS) ownQueue() *workQueue { return t.queue }

// Requests are the backend requests waiting to be submitted.
func (m *Music) Requests() <-chan domain.BackendRequest { return m.queue.Requests() }
func (t *TTS) Requests() <-chan domain.BackendRequest { return t.queue.Requests() }

// Completions is the single entry point for backend callbacks.
// Deliveries are buffered and applied one at a time by the completion worker.
type Completions struct {
	queues  []*workQueue
	pending chan domain.Completion
	log     *slog.Logger
}

func NewCompletions(capacity int, log *slog.Logger, owners ...QueueOwner) *Completions {
	c := &Completions{pending: make(chan domain.Completion, capacity), log: log}
	for _, o := range owners {
		c.queues = append(c.queues, o.ownQueue())
	}
	return c
}

// Deliver hands a completion over. Unknown or no longer active requests are refused.
func (c *Completions) Deliver(ctx context.Context, comp domain.Completion) error {
	if c.owner(comp.RequestID) == nil {
		return fmt.Errorf("request %s: %w", comp.RequestID, errors.ErrNotFound)
	}
	select {
	case c.pending <- comp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending is drained by the completion worker.
func (c *Completions) Pending() <-chan domain.Completion {
	return c.pending
}

// Apply routes a completion to the queue whose active item it belongs to.
func (c *Completions) Apply(comp domain.Completion) error {
	q := c.owner(comp.RequestID)
	if q == nil {
		return fmt.Errorf("request %s: %w", comp.RequestID, errors.ErrNotFound)
	}
	return q.complete(comp)
}

// StartIdle starts the next pending item of every queue with nothing active
// and returns how many were started. The playback poll calls it.
func (c *Completions) StartIdle() int {
	started := 0
	for _, q := range c.queues {
		if q.startIfIdle() {
			started++
		}
	}
	return started
}

// Lookup lets backends poll an item, a skipped item means playback should stop.
func (c *Completions) Lookup(id uuid.UUID) (domain.QueueItem, bool) {
	for _, q := range c.queues {
		if it, ok := q.lookup(id); ok {
			return it, true
		}
	}
	return domain.QueueItem{}, false
}

func (c *Completions) owner(id uuid.UUID) *workQueue {
	for _, q := range c.queues {
		if q.owns(id) {
			return q
		}
	}
	return nil
}
