package workers

import (
	"context"
	"log/slog"
	"time"
)

// Pinger is satisfied by the overlay hub.
type Pinger interface {
	PingAll(now time.Time) (closed int)
}

// HeartbeatWorker pings every overlay session on a fixed interval.
// Sessions missing too many pongs are closed by the hub itself.
type HeartbeatWorker struct {
	log      *slog.Logger
	hub      Pinger
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, hub Pinger, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, hub: hub, interval: interval}
}

// Run executes the main loop of the worker until ctx is done.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting overlay heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if closed := w.hub.PingAll(now); closed > 0 {
				w.log.Info("Closed unresponsive overlay sessions", "count", closed)
			}
		}
	}
}
