package workers

import (
	"context"
	"log/slog"
	"stream-lab/domain/event"
)

// TelemetryWorker drains technical events into the handler chain.
type TelemetryWorker struct {
	log           *slog.Logger
	telemetryChan chan event.Telemetry
	handlers      []event.Handler
}

func NewTelemetryWorker(log *slog.Logger,
	telemetryChan chan event.Telemetry,
	handlers []event.Handler) *TelemetryWorker {
	return &TelemetryWorker{
		log:           log,
		telemetryChan: telemetryChan,
		handlers:      handlers,
	}
}

func (w TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case evt := <-w.telemetryChan:
			w.handle(evt)
		}
	}
}

func (w TelemetryWorker) handle(t event.Telemetry) {
	for _, h := range w.handlers {
		h.Handle(t)
	}
}
