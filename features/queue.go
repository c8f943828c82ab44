package features

import (
	"fmt"
	"log/slog"
	"strings"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type QueueConfig struct {
	Kind     domain.QueueKind
	Capacity int
	// PerUser caps pending requests of one viewer, 0 disables the cap.
	PerUser     int
	History     int
	MaxAttempts int
}

// workQueue holds at most one active item plus pending ones, Capacity bounds both together.
// Requests enter as pending, only playback (Advance, startIfIdle, completions, skips)
// makes an item active. Every state change is published as a full snapshot.
type workQueue struct {
	mu      sync.Mutex
	cfg     QueueConfig
	topic   event.Topic
	active  *domain.QueueItem
	pending []domain.QueueItem
	history []domain.QueueItem
	voters  map[domain.ViewerID]struct{}
	needed  int

	requests chan domain.BackendRequest
	pub      contract.Publisher
	log      *slog.Logger
	now      func() time.Time
}

func newWorkQueue(cfg QueueConfig, topic event.Topic, pub contract.Publisher, log *slog.Logger) *workQueue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &workQueue{
		cfg:      cfg,
		topic:    topic,
		voters:   make(map[domain.ViewerID]struct{}),
		requests: make(chan domain.BackendRequest, cfg.Capacity+1),
		pub:      pub,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Requests is drained by the backend worker.
func (q *workQueue) Requests() <-chan domain.BackendRequest {
	return q.requests
}

func (q *workQueue) Kind() domain.QueueKind { return q.cfg.Kind }

func (q *workQueue) enqueue(issuer domain.Viewer, payload, lang string, priority bool) (domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.length() >= q.cfg.Capacity {
		return domain.QueueItem{}, fmt.Errorf("%s queue holds %d items: %w", q.cfg.Kind, q.cfg.Capacity, errors.ErrQueueFull)
	}
	mine := 0
	for _, it := range q.pending {
		if it.Requester == issuer.ID {
			mine++
		}
		if strings.EqualFold(it.Payload, payload) {
			return domain.QueueItem{}, fmt.Errorf("%q is already queued: %w", payload, errors.ErrRejected)
		}
	}
	if q.active != nil && strings.EqualFold(q.active.Payload, payload) {
		return domain.QueueItem{}, fmt.Errorf("%q is playing: %w", payload, errors.ErrRejected)
	}
	if q.cfg.PerUser > 0 && mine >= q.cfg.PerUser {
		return domain.QueueItem{}, fmt.Errorf("at most %d requests per viewer: %w", q.cfg.PerUser, errors.ErrRejected)
	}

	item := domain.QueueItem{
		ID:            uuid.New(),
		Kind:          q.cfg.Kind,
		Requester:     issuer.ID,
		RequesterName: issuer.Name(),
		Payload:       payload,
		Lang:          lang,
		Priority:      priority,
		EnqueuedAt:    q.now(),
		Status:        domain.StatusPending,
	}
	pos := len(q.pending)
	if priority {
		pos = 0
		for pos < len(q.pending) && q.pending[pos].Priority {
			pos++
		}
	}
	q.pending = append(q.pending, domain.QueueItem{})
	copy(q.pending[pos+1:], q.pending[pos:])
	q.pending[pos] = item
	q.publish()
	return item, nil
}

func (q *workQueue) length() int {
	if q.active != nil {
		return len(q.pending) + 1
	}
	return len(q.pending)
}

// Advance marks the active item done and promotes the next one.
// It is a no-op on an empty queue.
func (q *workQueue) Advance() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil && len(q.pending) == 0 {
		return false
	}
	q.finish(domain.StatusDone, "")
	q.promote()
	q.publish()
	return true
}

// startIfIdle promotes the head of the queue when nothing is playing.
// It is the player asking for its next item, an active item is never touched.
func (q *workQueue) startIfIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active != nil || len(q.pending) == 0 {
		return false
	}
	q.promote()
	q.publish()
	return true
}

// skip ends the active item as skipped. The backend is expected to stop on its next poll.
func (q *workQueue) skip() (domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil {
		return domain.QueueItem{}, fmt.Errorf("nothing is playing: %w", errors.ErrNotFound)
	}
	skipped := *q.active
	q.finish(domain.StatusSkipped, "")
	q.promote()
	q.publish()
	skipped.Status = domain.StatusSkipped
	return skipped, nil
}

// vote adds one skip vote for the active item. Reaching the threshold advances the queue.
func (q *workQueue) vote(voter domain.ViewerID, needed int) (votes int, passed bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil {
		return 0, false, fmt.Errorf("nothing is playing: %w", errors.ErrNotFound)
	}
	if _, dup := q.voters[voter]; dup {
		return len(q.voters), false, fmt.Errorf("already voted: %w", errors.ErrRejected)
	}
	q.voters[voter] = struct{}{}
	q.needed = needed
	votes = len(q.voters)
	if votes < needed {
		q.publish()
		return votes, false, nil
	}
	q.finish(domain.StatusDone, "")
	q.promote()
	q.publish()
	return votes, true, nil
}

// remove cancels a pending item. With position > 0 the item at that 1-based
// position is removed, otherwise the latest pending request of the issuer,
// or its active item when nothing of it is pending.
func (q *workQueue) remove(issuer domain.ViewerID, position int, privileged bool) (domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := -1
	switch {
	case position > 0:
		if position > len(q.pending) {
			return domain.QueueItem{}, fmt.Errorf("no item at position %d: %w", position, errors.ErrNotFound)
		}
		idx = position - 1
		if !privileged && q.pending[idx].Requester != issuer {
			return domain.QueueItem{}, fmt.Errorf("item %d belongs to someone else: %w", position, errors.ErrForbidden)
		}
	default:
		for i := len(q.pending) - 1; i >= 0; i-- {
			if q.pending[i].Requester == issuer {
				idx = i
				break
			}
		}
		if idx < 0 && q.active != nil && q.active.Requester == issuer {
			cancelled := *q.active
			cancelled.Status = domain.StatusSkipped
			q.finish(domain.StatusSkipped, "")
			q.promote()
			q.publish()
			return cancelled, nil
		}
		if idx < 0 {
			return domain.QueueItem{}, fmt.Errorf("no pending request: %w", errors.ErrNotFound)
		}
	}
	item := q.pending[idx]
	q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
	item.Status = domain.StatusSkipped
	q.remember(item)
	q.publish()
	return item, nil
}

// clear drops every pending item, the active one keeps going.
func (q *workQueue) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	for _, it := range q.pending {
		it.Status = domain.StatusSkipped
		q.remember(it)
	}
	q.pending = nil
	if n > 0 {
		q.publish()
	}
	return n
}

// complete applies a backend completion to the active item.
func (q *workQueue) complete(c domain.Completion) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil || q.active.ID != c.RequestID {
		return fmt.Errorf("request %s is not active: %w", c.RequestID, errors.ErrNotFound)
	}
	if c.Err == nil {
		q.finish(domain.StatusDone, c.Result)
		q.promote()
		q.publish()
		return nil
	}

	q.active.Attempts++
	if q.active.Attempts < q.cfg.MaxAttempts {
		q.log.Warn("Backend failed, retrying", "kind", q.cfg.Kind, "item", q.active.ID, "attempt", q.active.Attempts, "error", c.Err)
		q.submit(*q.active)
		return nil
	}
	failed := *q.active
	failed.Status = domain.StatusFailed
	failed.Result = c.Err.Error()
	q.log.Error("Backend gave up", "kind", q.cfg.Kind, "item", failed.ID, "attempts", failed.Attempts, "error", c.Err)
	q.finish(domain.StatusFailed, c.Err.Error())
	q.promote()
	q.publish()
	q.pub.Publish(event.NewDelta(event.TopicQueueItemFailed, failed))
	return nil
}

func (q *workQueue) owns(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active != nil && q.active.ID == id
}

// lookup finds an item by id in any state still remembered.
func (q *workQueue) lookup(id uuid.UUID) (domain.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active != nil && q.active.ID == id {
		return *q.active, true
	}
	for _, list := range [][]domain.QueueItem{q.pending, q.history} {
		for _, it := range list {
			if it.ID == id {
				return it, true
			}
		}
	}
	return domain.QueueItem{}, false
}

func (q *workQueue) Snapshot() domain.QueueSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

func (q *workQueue) snapshot() domain.QueueSnapshot {
	snap := domain.QueueSnapshot{
		Kind:    q.cfg.Kind,
		Pending: append([]domain.QueueItem{}, q.pending...),
		History: append([]domain.QueueItem{}, q.history...),
		Votes:   len(q.voters),
		Needed:  q.needed,
	}
	if q.active != nil {
		a := *q.active
		snap.Active = &a
	}
	return snap
}

// finish must be called with the lock held.
func (q *workQueue) finish(status domain.ItemStatus, result string) {
	if q.active == nil {
		return
	}
	done := *q.active
	done.Status = status
	done.Result = result
	q.remember(done)
	q.active = nil
	q.voters = make(map[domain.ViewerID]struct{})
	q.needed = 0
}

func (q *workQueue) promote() {
	if q.active != nil || len(q.pending) == 0 {
		return
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	next.Status = domain.StatusActive
	q.active = &next
	q.submit(next)
}

func (q *workQueue) submit(item domain.QueueItem) {
	req := domain.BackendRequest{
		ID:        item.ID,
		Kind:      item.Kind,
		Payload:   item.Payload,
		Lang:      item.Lang,
		Requester: item.Requester,
		Attempt:   item.Attempts + 1,
	}
	select {
	case q.requests <- req:
	default:
		q.log.Error("Backend request channel full", "kind", q.cfg.Kind, "item", item.ID)
	}
}

func (q *workQueue) remember(item domain.QueueItem) {
	if q.cfg.History <= 0 {
		return
	}
	q.history = append(q.history, item)
	if over := len(q.history) - q.cfg.History; over > 0 {
		q.history = q.history[over:]
	}
}

func (q *workQueue) publish() {
	q.pub.Publish(event.NewDelta(q.topic, q.snapshot()))
}
