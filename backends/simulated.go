package backends

import (
	"context"
	"fmt"
	"log/slog"
	"stream-lab/domain"
	"stream-lab/errors"
	"strings"
	"time"
)

// Deliverer is satisfied by features.Completions.
type Deliverer interface {
	Deliver(ctx context.Context, c domain.Completion) error
}

// SimulatedBackend completes every request after a delay proportional to its payload.
// Payloads containing FailMarker fail, which exercises the retry policy without a real player.
type SimulatedBackend struct {
	ctx        context.Context
	deliverer  Deliverer
	perRune    time.Duration
	maxDelay   time.Duration
	FailMarker string
	log        *slog.Logger
}

func NewSimulatedBackend(ctx context.Context, deliverer Deliverer, perRune, maxDelay time.Duration, log *slog.Logger) *SimulatedBackend {
	return &SimulatedBackend{ctx: ctx, deliverer: deliverer, perRune: perRune, maxDelay: maxDelay, log: log}
}

func (s *SimulatedBackend) Submit(_ context.Context, req domain.BackendRequest) error {
	delay := time.Duration(len([]rune(req.Payload))) * s.perRune
	if s.maxDelay > 0 && delay > s.maxDelay {
		delay = s.maxDelay
	}
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}
		c := domain.Completion{RequestID: req.ID, Result: fmt.Sprintf("%s done", req.Kind)}
		if s.FailMarker != "" && strings.Contains(req.Payload, s.FailMarker) {
			c = domain.Completion{RequestID: req.ID, Err: errors.ErrExternalFailure}
		}
		if err := s.deliverer.Deliver(s.ctx, c); err != nil {
			s.log.Debug("Simulated completion not delivered", "request_id", req.ID, "error", err)
		}
	}()
	return nil
}
