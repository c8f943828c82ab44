package sink

import (
	"context"
	"log/slog"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/repositories"
)

// chatLine extracts the admitted line carried by a chat_message delta.
func chatLine(evt event.Event) (domain.ChatLine, bool) {
	d, ok := evt.Delta()
	if !ok || d.Topic != event.TopicChatMessage {
		return domain.ChatLine{}, false
	}
	line, ok := d.Data.(domain.ChatLine)
	return line, ok
}

// ChatLogSink persists admitted chat lines for the history API.
type ChatLogSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewChatLogSink(repository repositories.IMessageRepository, log *slog.Logger) ChatLogSink {
	return ChatLogSink{repository: repository, log: log}
}

func (c ChatLogSink) Name() string { return "ChatLogSink" }

func (c ChatLogSink) Consume(_ context.Context, evt event.Event) error {
	line, ok := chatLine(evt)
	if !ok {
		return nil
	}
	return c.repository.StoreMessage(line)
}

// SearchSink feeds the full-text chat index.
type SearchSink struct {
	index repositories.IChatIndex
	log   *slog.Logger
}

func NewSearchSink(index repositories.IChatIndex, log *slog.Logger) SearchSink {
	return SearchSink{index: index, log: log}
}

func (s SearchSink) Name() string { return "SearchSink" }

func (s SearchSink) Consume(_ context.Context, evt event.Event) error {
	line, ok := chatLine(evt)
	if !ok {
		return nil
	}
	if err := s.index.Index(line); err != nil {
		s.log.Debug("Failed to index chat line", "id", line.ID, "error", err)
		return err
	}
	return nil
}
