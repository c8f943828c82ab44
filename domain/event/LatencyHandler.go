package event

import (
	"log/slog"
	"stream-lab/errors"
	"time"
)

// LatencyHandler reports how long a command took between ingestion and its result.
type LatencyHandler struct {
	log              *slog.Logger
	latencyThreshold time.Duration
}

func NewLatencyHandler(log *slog.Logger, latencyThreshold time.Duration) *LatencyHandler {
	return &LatencyHandler{log: log, latencyThreshold: latencyThreshold}
}

func (h *LatencyHandler) Handle(t Telemetry) {
	if t.Type != DispatchLatencyType {
		return
	}
	payload, ok := t.Payload.(DispatchLatency)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error())
		return
	}
	leadTime := t.CreatedAt.Sub(payload.At)
	h.log.Debug("telemetry: dispatch latency",
		"viewer_id", payload.ViewerID,
		"command", payload.Command,
		"seq", payload.Seq,
		"lead_time_ms", leadTime.Milliseconds(),
	)
	if leadTime > h.latencyThreshold {
		h.log.Warn("high latency detected", "command", payload.Command, "lead_time", leadTime)
	}
}
