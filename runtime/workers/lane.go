package workers

import (
	"context"
	"log/slog"
	"stream-lab/contract"
	"stream-lab/directory"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/guard"
	"stream-lab/router"
	"time"

	"github.com/google/uuid"
)

// Ensure *LaneWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*LaneWorker)(nil)

// Censor masks banned words of a chat line before it is shown.
type Censor interface {
	Censor(text string) (string, []string)
}

// LaneWorker processes the raw events of the viewers hashed onto its lane:
// observe the viewer, guard comments, then dispatch commands or publish chat.
type LaneWorker struct {
	id        int
	channel   string
	events    chan event.Event
	dir       *directory.Directory
	guard     *guard.Guard
	router    *router.Router
	censor    Censor
	pub       contract.Publisher
	telemetry chan event.Telemetry
	log       *slog.Logger
}

type LaneDeps struct {
	Channel   string
	Directory *directory.Directory
	Guard     *guard.Guard
	Router    *router.Router
	Censor    Censor
	Publisher contract.Publisher
	Telemetry chan event.Telemetry
}

func NewLaneWorker(id int, events chan event.Event, deps LaneDeps, log *slog.Logger) *LaneWorker {
	return &LaneWorker{
		id:        id,
		channel:   deps.Channel,
		events:    events,
		dir:       deps.Directory,
		guard:     deps.Guard,
		router:    deps.Router,
		censor:    deps.Censor,
		pub:       deps.Publisher,
		telemetry: deps.Telemetry,
		log:       log.With("lane", id),
	}
}

func (w *LaneWorker) Name() string { return "LaneWorker" }

func (w *LaneWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.Handle(ctx, evt)
		}
	}
}

// Handle runs one raw event through the pipeline.
func (w *LaneWorker) Handle(ctx context.Context, evt event.Event) {
	if evt.ViewerID == "" {
		w.log.Debug("Raw event without viewer ignored", "seq", evt.Seq, "kind", evt.Kind)
		return
	}
	comment, isComment := evt.Payload.(event.Comment)
	hints := directory.Hints{}
	if isComment {
		hints = directory.Hints{Moderator: comment.Moderator, Broadcaster: comment.Broadcaster, VIP: comment.VIP}
	}
	v := w.dir.Observe(evt.ViewerID, evt.DisplayName, evt.At, hints)
	if !isComment {
		return
	}

	decision := w.guard.Check(v, comment.Text, evt.At)
	if !decision.Admitted {
		name, _, _, _ := router.Parse(comment.Text)
		w.log.Debug("Comment rejected", "viewer_id", v.ID, "reason", decision.Reason, "seq", evt.Seq)
		w.pub.Publish(event.NewResult(v.ID, v.Name(), event.CommandResult{
			Command: name,
			Status:  event.StatusRejected,
			Reason:  decision.Reason,
		}))
		if len(decision.Words) > 0 {
			w.report(v.ID, decision.Words)
		}
		return
	}

	if updated, err := w.dir.Update(v.ID, func(v *domain.Viewer) error {
		v.Messages++
		return nil
	}); err == nil {
		v = updated
	}

	if w.router.Dispatch(ctx, v, evt, comment.Text) {
		return
	}

	content, words := w.censor.Censor(comment.Text)
	if len(words) > 0 {
		w.report(v.ID, words)
	}
	delta := event.NewDelta(event.TopicChatMessage, domain.ChatLine{
		ID:          uuid.New(),
		Channel:     w.channel,
		ViewerID:    v.ID,
		DisplayName: v.Name(),
		Content:     content,
		Role:        v.Role().String(),
		Seq:         evt.Seq,
		At:          evt.At,
	})
	delta.ViewerID, delta.DisplayName = v.ID, v.Name()
	w.pub.Publish(delta)
}

func (w *LaneWorker) report(id domain.ViewerID, words []string) {
	if w.telemetry == nil {
		return
	}
	select {
	case w.telemetry <- event.Telemetry{
		Type:      event.CensorshipHitType,
		CreatedAt: time.Now().UTC(),
		Payload:   event.CensorshipHit{ViewerID: string(id), Words: words},
	}:
	default:
		w.log.Debug("Observability telemetry event lost")
	}
}
