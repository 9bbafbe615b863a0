package repository

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var boltBucket = []byte("feeding")

// BoltStore implements Store using BoltDB (bbolt). Writers are serialised by
// bolt itself, so Update never needs to retry.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) a single-file bolt database at dbPath
func NewBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create parent directory for bolt db")
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{
		Timeout:      1 * time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bolt db")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to create bucket %s", boltBucket)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(newTx(&boltKV{bucket: tx.Bucket(boltBucket)}))
	})
}

func (s *BoltStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(newTx(&boltKV{bucket: tx.Bucket(boltBucket)}))
	})
}

// Close closes the database connection
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltKV struct {
	bucket *bbolt.Bucket
}

// get copies the value; bolt memory is only valid for the transaction.
func (b *boltKV) get(key string) ([]byte, error) {
	v := b.bucket.Get([]byte(key))
	if v == nil {
		return nil, errKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (b *boltKV) set(key string, value []byte) error {
	return b.bucket.Put([]byte(key), value)
}

func (b *boltKV) scan(prefix string, fn func(key string, value []byte) error) error {
	p := []byte(prefix)
	c := b.bucket.Cursor()
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		if err := fn(string(k), v); err != nil {
			return err
		}
	}
	return nil
}
