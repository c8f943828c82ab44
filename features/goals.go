package features

import (
	"context"
	"log/slog"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"sync"
)

// Goals tracks stream goals. Completing a goal activates the next one of the same type.
type Goals struct {
	mu    sync.Mutex
	goals []domain.Goal
	pub   contract.Publisher
	log   *slog.Logger
}

func NewGoals(goals []domain.Goal, pub contract.Publisher, log *slog.Logger) *Goals {
	return &Goals{goals: append([]domain.Goal{}, goals...), pub: pub, log: log}
}

func (g *Goals) Consume(_ context.Context, evt event.Event) error {
	var (
		kind domain.GoalType
		step int
	)
	switch p := evt.Payload.(type) {
	case event.Follow:
		kind, step = domain.GoalFollowers, 1
	case event.Gift:
		kind, step = domain.GoalGifts, max(p.Count, 1)
	case event.StateDelta:
		if p.Topic != event.TopicChatMessage {
			return nil
		}
		kind, step = domain.GoalMessages, 1
	default:
		return nil
	}
	if g.progress(kind, step) {
		g.pub.Publish(event.NewDelta(event.TopicGoalUpdated, g.Snapshot()))
	}
	return nil
}

func (g *Goals) progress(kind domain.GoalType, step int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.goals {
		goal := &g.goals[i]
		if goal.Type != kind || !goal.Active || goal.Completed {
			continue
		}
		goal.Current = min(goal.Current+step, goal.Target)
		if goal.Current >= goal.Target {
			goal.Completed, goal.Active = true, false
			g.log.Info("Goal completed", "goal", goal.ID, "target", goal.Target)
			g.activateNext(kind)
		}
		return true
	}
	return false
}

func (g *Goals) activateNext(kind domain.GoalType) {
	for i := range g.goals {
		goal := &g.goals[i]
		if goal.Type == kind && !goal.Active && !goal.Completed {
			goal.Active = true
			return
		}
	}
}

func (g *Goals) Snapshot() []domain.Goal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Goal{}, g.goals...)
}
