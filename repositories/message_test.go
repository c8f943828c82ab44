package repositories

import (
	"log/slog"
	"stream-lab/domain"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openBadger(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func chatLine(channel, author, content string, at time.Time) domain.ChatLine {
	return domain.ChatLine{
		ID:          uuid.New(),
		Channel:     channel,
		ViewerID:    domain.ViewerID(author),
		DisplayName: author,
		Content:     content,
		Role:        "anyone",
		At:          at,
	}
}

func Test_Record_Multiple_Message(t *testing.T) {
	req := require.New(t)
	db := openBadger(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	content := "this message will self destruct in 5 seconds"
	at := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	lines := []domain.ChatLine{
		chatLine("lofi", "Alice", content, at),
		chatLine("lofi", "Bob", content, at.Add(1*time.Minute)),
		chatLine("lofi", "Clara", content, at.Add(2*time.Minute)),
		chatLine("other", "Dan", content, at),
	}
	for _, l := range lines {
		req.NoError(repository.StoreMessage(l))
	}

	fetched, _, err := repository.GetMessages("lofi", nil)
	req.NoError(err)
	req.Len(fetched, 3)
	// Newest first
	req.Equal(lines[2], fetched[0])
	req.Equal(lines[1], fetched[1])
	req.Equal(lines[0], fetched[2])
}

func Test_Record_Multiple_Message_And_Paginate(t *testing.T) {
	req := require.New(t)
	db := openBadger(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	at := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	for i, author := range []string{"Alice", "Bob", "Clara"} {
		req.NoError(repository.StoreMessage(chatLine("lofi", author, "hello", at.Add(time.Duration(i)*time.Minute))))
	}

	// --- PAGE 1 ---
	page1, cursor, err := repository.GetMessages("lofi", nil)
	req.NoError(err)
	req.Len(page1, limit)
	req.Equal("Clara", page1[0].DisplayName)
	req.Equal("Bob", page1[1].DisplayName)

	// --- PAGE 2 ---
	page2, _, err := repository.GetMessages("lofi", cursor)
	req.NoError(err)
	req.Len(page2, 1)
	req.Equal("Alice", page2[0].DisplayName)
}
