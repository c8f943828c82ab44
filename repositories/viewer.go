//go:generate go run go.uber.org/mock/mockgen -source=viewer.go -destination=../mocks/mock_viewer_repository.go -package=mocks
package repositories

import (
	"stream-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const viewerPrefix = "viewer:"

// IViewerRepository stores the directory snapshot restored at start-up.
type IViewerRepository interface {
	SaveViewers(viewers []domain.Viewer) error
	LoadViewers() ([]domain.Viewer, error)
}

type ViewerRepository struct {
	db *badger.DB
}

func NewViewerRepository(db *badger.DB) ViewerRepository {
	return ViewerRepository{db: db}
}

// SaveViewers overwrites each viewer record in a single write batch.
func (v ViewerRepository) SaveViewers(viewers []domain.Viewer) error {
	wb := v.db.NewWriteBatch()
	defer wb.Cancel()
	for _, viewer := range viewers {
		data, err := json.Marshal(viewer)
		if err != nil {
			return err
		}
		if err = wb.Set([]byte(viewerPrefix+string(viewer.ID)), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (v ViewerRepository) LoadViewers() ([]domain.Viewer, error) {
	var viewers []domain.Viewer
	err := v.db.View(func(txn *badger.Txn) error {
		prefix := []byte(viewerPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var viewer domain.Viewer
				if err := json.Unmarshal(val, &viewer); err != nil {
					return err
				}
				viewers = append(viewers, viewer)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return viewers, err
}
