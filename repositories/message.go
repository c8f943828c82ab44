//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"stream-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

type IMessageRepository interface {
	StoreMessage(line domain.ChatLine) error
	GetMessages(channel string, cursor *string) ([]domain.ChatLine, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

func messageKey(line domain.ChatLine) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", line.Channel, line.At.UnixNano(), line.ID))
}

// StoreMessage persists an admitted chat line.
// The key is formatted as "msg:{channel}:{timestamp_padded}:{uuid}", the padding keeps
// lexicographical order chronological and the uuid separates lines of the same nanosecond.
func (m MessageRepository) StoreMessage(line domain.ChatLine) error {
	bytes, err := json.Marshal(line)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(line), bytes)
	})
}

// GetMessages returns the lines of a channel, newest first, using a reverse prefix scan.
// The returned cursor is fed back to read the next (older) page.
func (m MessageRepository) GetMessages(channel string, cursor *string) ([]domain.ChatLine, *string, error) {
	var byteMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", channel)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Past the newest possible key, then walk backwards
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	lines := make([]domain.ChatLine, 0, len(byteMessages))
	for _, b := range byteMessages {
		var line domain.ChatLine
		if err = json.Unmarshal(b, &line); err != nil {
			return nil, nil, err
		}
		lines = append(lines, line)
	}
	return lines, &lastKey, nil
}
