package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"stream-lab/bus"
	"stream-lab/domain/event"
	"stream-lab/errors"

	"github.com/cespare/xxhash/v2"
)

// DispatchWorker splits the raw event stream into lanes keyed by viewer.
// A viewer always lands on the same lane so its events keep their bus order.
type DispatchWorker struct {
	log   *slog.Logger
	sub   *bus.Subscription
	lanes []chan event.Event
}

func NewDispatchWorker(log *slog.Logger, sub *bus.Subscription, lanes []chan event.Event) *DispatchWorker {
	return &DispatchWorker{log: log, sub: sub, lanes: lanes}
}

// LaneOf is stable for a viewer id and a lane count.
func LaneOf(viewerID string, lanes int) int {
	return int(xxhash.Sum64String(viewerID) % uint64(lanes))
}

func (w *DispatchWorker) Run(ctx context.Context) error {
	for {
		evt, err := w.sub.Next(ctx)
		if err != nil {
			if stderrors.Is(err, errors.ErrSubscriptionClosed) {
				return nil
			}
			w.log.Debug("Context done, stopping dispatch")
			return nil
		}
		lane := w.lanes[LaneOf(string(evt.ViewerID), len(w.lanes))]
		select {
		case lane <- evt:
		case <-ctx.Done():
			return nil
		}
	}
}
