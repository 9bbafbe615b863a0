package repository

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxConflictRetries bounds optimistic retries when concurrent units of work
// touch the same keys, e.g. two debits of one SKU.
const maxConflictRetries = 32

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db     *badger.DB
	logger *logrus.Logger
}

// NewBadgerStore opens (or creates) a BadgerDB directory at dbPath
func NewBadgerStore(dbPath string, logger *logrus.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger db")
	}

	return &BadgerStore{db: db, logger: logger}, nil
}

func (s *BadgerStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(newTx(&badgerKV{txn: txn}))
	})
}

// Update runs fn in a read-write transaction, retrying when badger detects
// that a key read by fn was committed by someone else first.
func (s *BadgerStore) Update(ctx context.Context, fn func(Tx) error) error {
	backoff := time.Millisecond
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			return fn(newTx(&badgerKV{txn: txn}))
		})
		if !errors.Is(err, badger.ErrConflict) || attempt == maxConflictRetries {
			return err
		}

		s.logger.WithField("attempt", attempt).Debug("Retrying badger transaction after conflict")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 50*time.Millisecond {
			backoff *= 2
		}
	}
}

// Close closes the database connection
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerKV struct {
	txn *badger.Txn
}

func (b *badgerKV) get(key string) ([]byte, error) {
	item, err := b.txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, errKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (b *badgerKV) set(key string, value []byte) error {
	return b.txn.Set([]byte(key), value)
}

func (b *badgerKV) scan(prefix string, fn func(key string, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 10
	opts.Prefix = []byte(prefix)
	it := b.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(string(item.KeyCopy(nil)), value); err != nil {
			return err
		}
	}
	return nil
}

// badgerLogger adapts logrus logger to badger's logger interface
type badgerLogger struct {
	logger *logrus.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Infof is demoted to debug; badger is chatty at info on every open.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}
