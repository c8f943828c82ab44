//go:generate go run go.uber.org/mock/mockgen -source=chat_index.go -destination=../mocks/mock_chat_index.go -package=mocks
package repositories

import (
	"context"
	"log/slog"
	"stream-lab/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	fieldChannel = "channel"
	fieldViewer  = "viewer"
	fieldName    = "name"
	fieldContent = "content"
	fieldAt      = "at"

	defaultSearchLimit = 20
)

type IChatIndex interface {
	Index(line domain.ChatLine) error
	Search(ctx context.Context, channel, query string, limit int) ([]domain.ChatLine, error)
}

// ChatIndex is the full-text side of the chat log.
type ChatIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewChatIndex(writer *bluge.Writer, log *slog.Logger) *ChatIndex {
	return &ChatIndex{writer: writer, log: log}
}

func (c *ChatIndex) Index(line domain.ChatLine) error {
	doc := bluge.NewDocument(line.ID.String()).
		AddField(bluge.NewKeywordField(fieldChannel, line.Channel).StoreValue()).
		AddField(bluge.NewKeywordField(fieldViewer, string(line.ViewerID)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldName, line.DisplayName).StoreValue()).
		AddField(bluge.NewTextField(fieldContent, line.Content).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldAt, line.At).StoreValue().Sortable())
	return c.writer.Update(doc.ID(), doc)
}

// Search matches content in one channel, newest first. An empty channel searches all of them.
func (c *ChatIndex) Search(ctx context.Context, channel, query string, limit int) ([]domain.ChatLine, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := bluge.NewBooleanQuery().AddMust(bluge.NewMatchQuery(query).SetField(fieldContent))
	if channel != "" {
		q.AddMust(bluge.NewTermQuery(channel).SetField(fieldChannel))
	}
	request := bluge.NewTopNSearch(limit, q).SortBy([]string{"-" + fieldAt})

	reader, err := c.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}
	var lines []domain.ChatLine
	match, err := matches.Next()
	for err == nil && match != nil {
		var line domain.ChatLine
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				line.ID, _ = uuid.ParseBytes(value)
			case fieldChannel:
				line.Channel = string(value)
			case fieldViewer:
				line.ViewerID = domain.ViewerID(value)
			case fieldName:
				line.DisplayName = string(value)
			case fieldContent:
				line.Content = string(value)
			case fieldAt:
				if at, decodeErr := bluge.DecodeDateTime(value); decodeErr == nil {
					line.At = at.UTC()
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	c.log.Debug("Chat search", "channel", channel, "query", query, "hits", len(lines))
	return lines, nil
}

// Close releases the underlying index writer.
func (c *ChatIndex) Close() error { return c.writer.Close() }

