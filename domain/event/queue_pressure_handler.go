package event

import (
	"fmt"
	"log/slog"
	"stream-lab/errors"
	"sync"
)

// QueuePressureHandler keeps the last sample of every bounded queue (bus subscriptions,
// lanes, feature request channels). The warning fires when a queue enters the low
// capacity zone, not on every sample while it stays there.
type QueuePressureHandler struct {
	log                  *slog.Logger
	lowCapacityThreshold int

	mu       sync.Mutex
	last     map[string]ChannelCapacity
	pressing map[string]bool
}

func NewQueuePressureHandler(log *slog.Logger, lowCapacityThreshold int) *QueuePressureHandler {
	return &QueuePressureHandler{
		log:                  log,
		lowCapacityThreshold: lowCapacityThreshold,
		last:                 make(map[string]ChannelCapacity),
		pressing:             make(map[string]bool),
	}
}

func (h *QueuePressureHandler) Handle(t Telemetry) {
	if t.Type != ChannelCapacityType {
		return
	}
	sample, ok := t.Payload.(ChannelCapacity)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error(), "type", t.Type)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[sample.ChannelName] = sample

	// unbuffered channels have no meaningful fill level
	if sample.Capacity <= 0 {
		return
	}
	left := sample.Capacity - sample.Length
	low := left <= h.lowCapacityThreshold
	switch {
	case low && !h.pressing[sample.ChannelName]:
		h.log.Warn("Queue almost full", "name", sample.ChannelName, "left", left, "dropped", sample.Dropped)
	case !low && h.pressing[sample.ChannelName]:
		h.log.Info("Queue drained", "name", sample.ChannelName, "left", left)
	}
	h.pressing[sample.ChannelName] = low
}

// Usage renders the last sample of each queue as "length/capacity".
func (h *QueuePressureHandler) Usage() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	res := make(map[string]string, len(h.last))
	for name, s := range h.last {
		res[name] = fmt.Sprintf("%d/%d", s.Length, s.Capacity)
	}
	return res
}

func (h *QueuePressureHandler) Pressing(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pressing[name]
}
