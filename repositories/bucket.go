//go:generate go run go.uber.org/mock/mockgen -source=bucket.go -destination=../mocks/mock_bucket_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"stream-lab/domain"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

type IBucketRepository interface {
	SaveBucket(ctx context.Context, b domain.Bucket) error
	GetBuckets(from, to time.Time) ([]domain.Bucket, error)
}

// BucketRepository keeps closed analytics windows, optionally expiring them.
type BucketRepository struct {
	db  *badger.DB
	ttl time.Duration
}

func NewBucketRepository(db *badger.DB, ttl time.Duration) BucketRepository {
	return BucketRepository{db: db, ttl: ttl}
}

func bucketKey(start time.Time) []byte {
	return []byte(fmt.Sprintf("bucket:%019d", start.UnixNano()))
}

func (r BucketRepository) SaveBucket(ctx context.Context, b domain.Bucket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(bucketKey(b.Start), data)
		if r.ttl > 0 {
			entry = entry.WithTTL(r.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// GetBuckets returns the buckets starting in [from, to), oldest first.
func (r BucketRepository) GetBuckets(from, to time.Time) ([]domain.Bucket, error) {
	var buckets []domain.Bucket
	end := bucketKey(to)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("bucket:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(bucketKey(from)); it.ValidForPrefix(prefix); it.Next() {
			if string(it.Item().Key()) >= string(end) {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var b domain.Bucket
				if err := json.Unmarshal(val, &b); err != nil {
					return err
				}
				buckets = append(buckets, b)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return buckets, err
}
