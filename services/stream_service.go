package services

import (
	"context"
	"fmt"
	"stream-lab/bus"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/errors"
	"stream-lab/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type QueueView interface {
	Snapshot() domain.QueueSnapshot
}

type GoalView interface {
	Snapshot() []domain.Goal
}

type StatsView interface {
	Snapshot() domain.StatsSnapshot
}

type ViewerView interface {
	Get(id domain.ViewerID) (domain.Viewer, bool)
	All() []domain.Viewer
}

type CompletionRouter interface {
	Deliver(ctx context.Context, c domain.Completion) error
	Lookup(id uuid.UUID) (domain.QueueItem, bool)
}

type BusView interface {
	Stats() []bus.SubscriptionStats
}

// StreamDeps are the read models and entry points the control API needs.
// Messages and Search are optional.
type StreamDeps struct {
	Ingester    contract.Ingester
	Stats       StatsView
	Music       QueueView
	TTS         QueueView
	Goals       GoalView
	Viewers     ViewerView
	Completions CompletionRouter
	Bus         BusView
	Messages    repositories.IMessageRepository
	Search      repositories.IChatIndex
}

type IStreamService interface {
	Ingest(ctx context.Context, raw domain.RawEvent) error
	Stats() domain.StatsSnapshot
	Queue(kind domain.QueueKind) (domain.QueueSnapshot, error)
	Goals() []domain.Goal
	Viewer(id domain.ViewerID) (domain.Viewer, error)
	TopViewers(limit int) []domain.Viewer
	Messages(channel string, cursor *string) ([]domain.ChatLine, *string, error)
	Search(ctx context.Context, channel, query string, limit int) ([]domain.ChatLine, error)
	Complete(ctx context.Context, id uuid.UUID, result, failure string) error
	BusStats() []bus.SubscriptionStats
}

type StreamService struct {
	deps StreamDeps
}

func NewStreamService(deps StreamDeps) *StreamService {
	return &StreamService{deps: deps}
}

func (s *StreamService) Ingest(ctx context.Context, raw domain.RawEvent) error {
	return s.deps.Ingester.Ingest(ctx, raw)
}

func (s *StreamService) Stats() domain.StatsSnapshot { return s.deps.Stats.Snapshot() }

func (s *StreamService) Queue(kind domain.QueueKind) (domain.QueueSnapshot, error) {
	switch kind {
	case domain.QueueMusic:
		return s.deps.Music.Snapshot(), nil
	case domain.QueueTTS:
		return s.deps.TTS.Snapshot(), nil
	}
	return domain.QueueSnapshot{}, fmt.Errorf("queue %q: %w", kind, errors.ErrNotFound)
}

func (s *StreamService) Goals() []domain.Goal { return s.deps.Goals.Snapshot() }

func (s *StreamService) Viewer(id domain.ViewerID) (domain.Viewer, error) {
	v, ok := s.deps.Viewers.Get(id)
	if !ok {
		return domain.Viewer{}, fmt.Errorf("viewer %q: %w", id, errors.ErrNotFound)
	}
	return v, nil
}

// TopViewers orders by points, then by id for a stable leaderboard.
func (s *StreamService) TopViewers(limit int) []domain.Viewer {
	viewers := lo.Filter(s.deps.Viewers.All(), func(v domain.Viewer, _ int) bool { return !v.Banned })
	sortByPoints(viewers)
	if limit > 0 && len(viewers) > limit {
		viewers = viewers[:limit]
	}
	return viewers
}

func (s *StreamService) Messages(channel string, cursor *string) ([]domain.ChatLine, *string, error) {
	if s.deps.Messages == nil {
		return nil, nil, fmt.Errorf("chat log: %w", errors.ErrNotFound)
	}
	return s.deps.Messages.GetMessages(channel, cursor)
}

func (s *StreamService) Search(ctx context.Context, channel, query string, limit int) ([]domain.ChatLine, error) {
	if s.deps.Search == nil {
		return nil, fmt.Errorf("chat search: %w", errors.ErrNotFound)
	}
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", errors.ErrInvalidArgument)
	}
	return s.deps.Search.Search(ctx, channel, query, limit)
}

// Complete is the callback of an external player. An empty failure means success.
func (s *StreamService) Complete(ctx context.Context, id uuid.UUID, result, failure string) error {
	if _, ok := s.deps.Completions.Lookup(id); !ok {
		return fmt.Errorf("request %s: %w", id, errors.ErrNotFound)
	}
	c := domain.Completion{RequestID: id, Result: result}
	if failure != "" {
		c.Err = fmt.Errorf("%w: %s", errors.ErrExternalFailure, failure)
	}
	return s.deps.Completions.Deliver(ctx, c)
}

func (s *StreamService) BusStats() []bus.SubscriptionStats {
	if s.deps.Bus == nil {
		return nil
	}
	return s.deps.Bus.Stats()
}
