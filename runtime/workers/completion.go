package workers

import (
	"context"
	"fmt"
	"log/slog"
	"stream-lab/contract"
	"stream-lab/domain"
	"time"
)

// CompletionApplier is satisfied by features.Completions.
type CompletionApplier interface {
	Pending() <-chan domain.Completion
	Apply(c domain.Completion) error
}

// CompletionWorker applies backend completions one at a time.
type CompletionWorker struct {
	log         *slog.Logger
	completions CompletionApplier
}

func NewCompletionWorker(log *slog.Logger, completions CompletionApplier) *CompletionWorker {
	return &CompletionWorker{log: log, completions: completions}
}

func (w *CompletionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return nil
		case c := <-w.completions.Pending():
			if err := w.completions.Apply(c); err != nil {
				w.log.Warn("Completion dropped", "request_id", c.RequestID, "error", err)
			}
		}
	}
}

// CompletionDeliverer is satisfied by features.Completions.
type CompletionDeliverer interface {
	Deliver(ctx context.Context, c domain.Completion) error
}

// BackendWorker forwards queued requests of one kind to its backend.
// A refused submission comes back as a failed completion so the retry policy applies.
type BackendWorker struct {
	log         *slog.Logger
	kind        domain.QueueKind
	requests    <-chan domain.BackendRequest
	backend     contract.Backend
	completions CompletionDeliverer
	timeout     time.Duration
}

func NewBackendWorker(log *slog.Logger, kind domain.QueueKind, requests <-chan domain.BackendRequest,
	backend contract.Backend, completions CompletionDeliverer, timeout time.Duration) *BackendWorker {
	return &BackendWorker{
		log:         log,
		kind:        kind,
		requests:    requests,
		backend:     backend,
		completions: completions,
		timeout:     timeout,
	}
}

func (w *BackendWorker) Name() string { return fmt.Sprintf("BackendWorker:%s", w.kind) }

func (w *BackendWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker", "kind", w.kind)
			return nil
		case req := <-w.requests:
			w.submit(ctx, req)
		}
	}
}

func (w *BackendWorker) submit(ctx context.Context, req domain.BackendRequest) {
	submitCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	err := w.backend.Submit(submitCtx, req)
	if err == nil {
		w.log.Debug("Request submitted", "kind", w.kind, "request_id", req.ID, "attempt", req.Attempt)
		return
	}
	w.log.Warn("Backend refused request", "kind", w.kind, "request_id", req.ID, "error", err)
	if derr := w.completions.Deliver(ctx, domain.Completion{RequestID: req.ID, Err: err}); derr != nil {
		w.log.Debug("Failure not delivered", "request_id", req.ID, "error", derr)
	}
}
