package projection

import (
	"context"
	"log/slog"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"sync"
	"time"
)

// BucketStore persists closed analytics buckets.
type BucketStore interface {
	SaveBucket(ctx context.Context, b domain.Bucket) error
}

// DropCounter is satisfied by the bus.
type DropCounter interface {
	TotalDropped() uint64
}

// ViewerCounter is satisfied by the directory.
type ViewerCounter interface {
	Len() int
}

type AnalyticsConfig struct {
	Window time.Duration
	// Retain closed buckets used for the per-minute rates.
	Retain int
}

func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{Window: time.Minute, Retain: 15}
}

type totals struct {
	messages   uint64
	gifts      uint64
	follows    uint64
	rejections map[string]uint64
}

// Analytics folds the whole event stream into fixed windows.
// Counting is best effort: events dropped by its subscription are not counted.
type Analytics struct {
	mu       sync.Mutex
	cfg      AnalyticsConfig
	current  *domain.Bucket
	closed   []domain.Bucket
	totals   totals
	lastDrop uint64
	started  time.Time

	store   BucketStore
	drops   DropCounter
	viewers ViewerCounter
	pub     contract.Publisher
	log     *slog.Logger
}

func NewAnalytics(cfg AnalyticsConfig, store BucketStore, drops DropCounter, viewers ViewerCounter,
	pub contract.Publisher, log *slog.Logger, started time.Time) *Analytics {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Retain <= 0 {
		cfg.Retain = 1
	}
	return &Analytics{
		cfg:     cfg,
		current: domain.NewBucket(started.Truncate(cfg.Window), cfg.Window),
		totals:  totals{rejections: make(map[string]uint64)},
		started: started,
		store:   store,
		drops:   drops,
		viewers: viewers,
		pub:     pub,
		log:     log,
	}
}

func (a *Analytics) Consume(_ context.Context, evt event.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.current
	switch p := evt.Payload.(type) {
	case event.Gift:
		b.Gifts++
		b.GiftUnits += uint64(max(p.Count, 1))
		a.totals.gifts++
	case event.Follow:
		b.Follows++
		a.totals.follows++
	case event.Like:
		b.Likes += uint64(max(p.Count, 1))
	case event.Join:
		b.Joins++
	case event.CommandResult:
		switch p.Status {
		case event.StatusRejected:
			b.Rejections[string(p.Reason)]++
			a.totals.rejections[string(p.Reason)]++
		case event.StatusUnknown:
			b.Unknown++
		case event.StatusForbidden:
			b.Forbidden++
		default:
			b.Commands++
		}
	case event.StateDelta:
		switch p.Topic {
		case event.TopicChatMessage:
			b.Messages++
			a.totals.messages++
		case event.TopicPointsChanged:
			if pc, ok := p.Data.(event.PointsChanged); ok {
				if pc.Entry.Delta > 0 {
					b.PointsEarned += pc.Entry.Delta
				} else {
					b.PointsSpent -= pc.Entry.Delta
				}
			}
		}
	}
	return nil
}

// Flush closes the current window once it is over, persists it and publishes
// a fresh snapshot on every call.
func (a *Analytics) Flush(ctx context.Context, now time.Time) error {
	a.mu.Lock()
	var toSave []domain.Bucket
	for !now.Before(a.current.Start.Add(a.cfg.Window)) {
		closed := *a.current
		if a.drops != nil {
			total := a.drops.TotalDropped()
			closed.BusDrops = total - a.lastDrop
			a.lastDrop = total
		}
		toSave = append(toSave, closed)
		a.closed = append(a.closed, closed)
		if over := len(a.closed) - a.cfg.Retain; over > 0 {
			a.closed = a.closed[over:]
		}
		next := closed.Start.Add(a.cfg.Window)
		if now.Sub(next) >= a.cfg.Window {
			// Idle stretch, jump straight to the window holding now.
			next = now.Truncate(a.cfg.Window)
		}
		a.current = domain.NewBucket(next, a.cfg.Window)
	}
	snap := a.snapshot(now)
	a.mu.Unlock()

	var firstErr error
	for _, b := range toSave {
		if a.store == nil {
			break
		}
		if err := a.store.SaveBucket(ctx, b); err != nil {
			a.log.Error("Failed to persist analytics bucket", "start", b.Start, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	a.pub.Publish(event.NewDelta(event.TopicStatsUpdated, snap))
	return firstErr
}

func (a *Analytics) Snapshot() domain.StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot(time.Now().UTC())
}

func (a *Analytics) snapshot(now time.Time) domain.StatsSnapshot {
	snap := domain.StatsSnapshot{
		At:              now,
		Uptime:          now.Sub(a.started),
		TotalMessages:   a.totals.messages,
		TotalGifts:      a.totals.gifts,
		NewFollows:      a.totals.follows,
		TotalRejections: make(map[string]uint64, len(a.totals.rejections)),
		Current:         *a.current,
	}
	snap.Current.Rejections = make(map[string]uint64, len(a.current.Rejections))
	for k, v := range a.current.Rejections {
		snap.Current.Rejections[k] = v
	}
	for k, v := range a.totals.rejections {
		snap.TotalRejections[k] = v
	}
	if a.viewers != nil {
		snap.Viewers = a.viewers.Len()
	}
	if a.drops != nil {
		snap.BusDrops = a.drops.TotalDropped()
	}
	if len(a.closed) > 0 {
		var messages, gifts uint64
		var flow int64
		for _, b := range a.closed {
			messages += b.Messages
			gifts += b.Gifts
			flow += b.PointsEarned - b.PointsSpent
		}
		minutes := float64(len(a.closed)) * a.cfg.Window.Minutes()
		snap.MessagesPerMin = float64(messages) / minutes
		snap.GiftsPerMin = float64(gifts) / minutes
		snap.PointFlow = flow
	}
	return snap
}
