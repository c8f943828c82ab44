package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"stream-lab/bus"
	"stream-lab/contract"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"time"
)

// EventFanout drains one bus subscription and hands every event to its sinks in order.
//
// Delivery is best-effort: the subscription drops its oldest events when this worker
// lags, and a sink exceeding the timeout only loses the event at hand.
type EventFanout struct {
	log         *slog.Logger
	name        string
	sub         *bus.Subscription
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, sub *bus.Subscription, sinkTimeout time.Duration, sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{log: log, name: "EventFanout:" + sub.Name(), sub: sub, sinks: sinks, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Name() string { return w.name }

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		evt, err := w.sub.Next(ctx)
		if err != nil {
			if stderrors.Is(err, errors.ErrSubscriptionClosed) {
				w.log.Debug("Subscription closed", "name", w.name)
				return nil
			}
			w.log.Debug("Context done, stopping fanout", "name", w.name)
			return nil
		}
		w.Fanout(ctx, evt)
	}
}

// Fanout One sink after the other, each under its own timeout
func (w *EventFanout) Fanout(ctx context.Context, evt event.Event) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink failed", "name", w.name, "sink", contract.GetSinkName(sink), "seq", evt.Seq, "error", err)
		}
		cancel()
	}
}
