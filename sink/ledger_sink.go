package sink

import (
	"context"
	"fmt"
	"log/slog"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/repositories"
	"sync"
	"time"
)

// LedgerSink archives points entries in batches.
// A batch is flushed when it reaches maxEntries or bufferTimeout after its first entry.
type LedgerSink struct {
	mu            sync.Mutex
	timer         *time.Timer
	repository    repositories.ILedgerRepository
	log           *slog.Logger
	entries       []domain.LedgerEntry
	maxEntries    int
	bufferTimeout time.Duration
}

func NewLedgerSink(repository repositories.ILedgerRepository, log *slog.Logger, maxEntries int, bufferTimeout time.Duration) *LedgerSink {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &LedgerSink{
		repository:    repository,
		log:           log,
		maxEntries:    maxEntries,
		bufferTimeout: bufferTimeout,
	}
}

func (l *LedgerSink) Name() string { return "LedgerSink" }

func (l *LedgerSink) Consume(ctx context.Context, evt event.Event) error {
	d, ok := evt.Delta()
	if !ok || d.Topic != event.TopicPointsChanged {
		return nil
	}
	changed, ok := d.Data.(event.PointsChanged)
	if !ok {
		return nil
	}

	l.mu.Lock()
	l.entries = append(l.entries, changed.Entry)

	// First entry of a new batch: make sure a quiet stream still gets flushed
	if len(l.entries) == 1 && l.timer == nil {
		l.timer = time.AfterFunc(l.bufferTimeout, func() {
			if err := l.Flush(context.WithoutCancel(ctx)); err != nil {
				l.log.Error("Ledger batch: timeout flush failed", "error", err)
			}
		})
	}
	isFull := len(l.entries) >= l.maxEntries
	l.mu.Unlock()

	if isFull {
		return l.Flush(ctx)
	}
	return nil
}

// Flush writes the pending batch. The buffer is swapped under the lock so consumers are not held
// while the repository writes.
func (l *LedgerSink) Flush(_ context.Context) error {
	l.mu.Lock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if len(l.entries) == 0 {
		l.mu.Unlock()
		return nil
	}
	batch := l.entries
	l.entries = make([]domain.LedgerEntry, 0, l.maxEntries)
	l.mu.Unlock()

	if err := l.repository.AppendEntries(batch...); err != nil {
		return fmt.Errorf("failed to store ledger batch: %w", err)
	}
	l.log.Debug("Ledger batch stored", "count", len(batch))
	return nil
}
