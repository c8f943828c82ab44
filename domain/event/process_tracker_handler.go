package event

import (
	"fmt"
	"log/slog"
	"stream-lab/errors"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// ProcessTrackerHandler remembers the latest process sample for the inspector.
type ProcessTrackerHandler struct {
	log  *slog.Logger
	last atomic.Pointer[ProcessStats]
}

func NewProcessTrackerHandler(log *slog.Logger) *ProcessTrackerHandler {
	return &ProcessTrackerHandler{log: log}
}

func (h *ProcessTrackerHandler) Handle(t Telemetry) {
	if t.Type != ProcessStatsType {
		return
	}
	stats, ok := t.Payload.(ProcessStats)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error(), "type", t.Type)
		return
	}
	h.last.Store(&stats)
	h.log.Debug("Process sample", "pid", stats.PID, "cpu", fmt.Sprintf("%.2f%%", stats.Cpu),
		"ram", humanize.Bytes(stats.Ram), "goroutines", stats.Goroutines)
}

// Summary is empty until the first sample arrives.
func (h *ProcessTrackerHandler) Summary() string {
	stats := h.last.Load()
	if stats == nil {
		return ""
	}
	return fmt.Sprintf("cpu %.1f%% | ram %s | %d goroutines", stats.Cpu, humanize.Bytes(stats.Ram), stats.Goroutines)
}
