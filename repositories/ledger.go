//go:generate go run go.uber.org/mock/mockgen -source=ledger.go -destination=../mocks/mock_ledger_repository.go -package=mocks
package repositories

import (
	"fmt"
	"stream-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ILedgerRepository archives points entries, the in-memory ledger stays authoritative.
type ILedgerRepository interface {
	AppendEntries(entries ...domain.LedgerEntry) error
	GetEntries(viewer domain.ViewerID) ([]domain.LedgerEntry, error)
}

type LedgerRepository struct {
	db *badger.DB
}

func NewLedgerRepository(db *badger.DB) LedgerRepository {
	return LedgerRepository{db: db}
}

func ledgerKey(e domain.LedgerEntry) []byte {
	return []byte(fmt.Sprintf("ledger:%s:%019d:%s", e.ViewerID, e.At.UnixNano(), e.ID))
}

func (l LedgerRepository) AppendEntries(entries ...domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return l.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err = txn.Set(ledgerKey(e), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetEntries returns the entries of one viewer, oldest first.
func (l LedgerRepository) GetEntries(viewer domain.ViewerID) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := l.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("ledger:%s:", viewer))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e domain.LedgerEntry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}
