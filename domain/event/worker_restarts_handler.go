package event

import (
	"log/slog"
	"maps"
	"stream-lab/errors"
	"sync"
)

// WorkerRestartsHandler tracks panics recovered by the supervisor, per worker.
// A worker restarting in a loop stands out in the diagnostics instead of drowning in the logs.
type WorkerRestartsHandler struct {
	log     *slog.Logger
	counter *Counter

	mu        sync.Mutex
	perWorker map[string]uint64
}

func NewWorkerRestartsHandler(log *slog.Logger, counter *Counter) *WorkerRestartsHandler {
	return &WorkerRestartsHandler{log: log, counter: counter, perWorker: make(map[string]uint64)}
}

func (h *WorkerRestartsHandler) Handle(t Telemetry) {
	if t.Type != RestartedAfterPanicType {
		return
	}
	payload, ok := t.Payload.(WorkerRestartedAfterPanic)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error(), "type", t.Type)
		return
	}
	h.counter.Increment(RestartedAfterPanicType)

	h.mu.Lock()
	h.perWorker[payload.WorkerName]++
	n := h.perWorker[payload.WorkerName]
	h.mu.Unlock()

	h.log.Warn("Worker restarted after panic", "worker", payload.WorkerName,
		"worker_restarts", n, "total", h.counter.Get(RestartedAfterPanicType))
}

func (h *WorkerRestartsHandler) PerWorker() map[string]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.perWorker)
}
