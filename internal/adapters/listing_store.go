package adapters

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	bolt "go.etcd.io/bbolt"

	"pub/internal/ports"
)

const ListingStoreFile = "hosted-metadata.db"

// ListingStore keeps the last registry listing seen for every hosted
// package, one bucket per registry, so offline runs can still solve.
type ListingStore struct {
	db *bolt.DB
}

func OpenListingStore(path string) (*ListingStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create listing store dir").
			WithCause(err)
	}
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("failed to open listing store").
			WithCause(err)
	}
	return &ListingStore{db: db}, nil
}

func (s *ListingStore) Put(registry string, name string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(registry))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(name), data)
	})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to store listing for " + name).
			WithCause(err)
	}
	return nil
}

func (s *ListingStore) Get(registry string, name string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(registry))
		if bucket == nil {
			return nil
		}
		if value := bucket.Get([]byte(name)); value != nil {
			out = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read listing for " + name).
			WithCause(err)
	}
	return out, out != nil, nil
}

func (s *ListingStore) Close() error {
	return s.db.Close()
}

var _ ports.ListingStorePort = (*ListingStore)(nil)
