package sink

import (
	"context"
	"fmt"
	"log/slog"
	"stream-lab/contract"
	"stream-lab/domain/event"
)

// ReplierSink sends command answers and bot replies back to the broadcast platform.
// Guard rejections are not answered.
type ReplierSink struct {
	replier contract.Replier
	log     *slog.Logger
}

func NewReplierSink(replier contract.Replier, log *slog.Logger) ReplierSink {
	return ReplierSink{replier: replier, log: log}
}

func (r ReplierSink) Name() string { return "ReplierSink" }

func (r ReplierSink) Consume(ctx context.Context, evt event.Event) error {
	text, ok := replyOf(evt)
	if !ok {
		return nil
	}
	return r.replier.Reply(ctx, text)
}

func replyOf(evt event.Event) (string, bool) {
	if res, ok := evt.Result(); ok {
		if res.Message == "" || res.Status == event.StatusRejected {
			return "", false
		}
		if evt.DisplayName == "" {
			return res.Message, true
		}
		return fmt.Sprintf("@%s %s", evt.DisplayName, res.Message), true
	}
	if d, ok := evt.Delta(); ok && d.Topic == event.TopicBotReply {
		reply, ok := d.Data.(event.BotReply)
		return reply.Text, ok && reply.Text != ""
	}
	return "", false
}
