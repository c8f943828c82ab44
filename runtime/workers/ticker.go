package workers

import (
	"context"
	"log/slog"
	"time"
)

// TickerWorker runs a maintenance task on a fixed interval: guard sweeps,
// viewer snapshots, analytics flushes. A failing tick is logged, the next one still runs.
type TickerWorker struct {
	log      *slog.Logger
	name     string
	interval time.Duration
	task     func(ctx context.Context, now time.Time) error
	// onStop runs once with a fresh context when the worker stops, used for the final snapshot.
	onStop func(ctx context.Context) error
}

func NewTickerWorker(log *slog.Logger, name string, interval time.Duration, task func(ctx context.Context, now time.Time) error) *TickerWorker {
	return &TickerWorker{log: log, name: name, interval: interval, task: task}
}

// OnStop registers a last run performed after cancellation.
func (w *TickerWorker) OnStop(fn func(ctx context.Context) error) *TickerWorker {
	w.onStop = fn
	return w
}

func (w *TickerWorker) Name() string { return w.name }

func (w *TickerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil
		case now := <-ticker.C:
			if err := w.task(ctx, now.UTC()); err != nil {
				w.log.Warn("Periodic task failed", "name", w.name, "error", err)
			}
		}
	}
}

func (w *TickerWorker) stop() {
	if w.onStop == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.onStop(ctx); err != nil {
		w.log.Error("Final run failed", "name", w.name, "error", err)
	}
}
