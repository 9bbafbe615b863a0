package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps records in process memory. Used for tests and dry runs.
type MemoryStore struct {
	data  map[string][]byte
	mutex sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return fn(newTx(&memoryKV{base: s.data}))
}

// Update holds the write lock for the whole unit of work and only applies
// buffered writes when fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	txn := &memoryKV{base: s.data, writes: make(map[string][]byte)}
	if err := fn(newTx(txn)); err != nil {
		return err
	}
	for k, v := range txn.writes {
		s.data[k] = v
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryKV struct {
	base   map[string][]byte
	writes map[string][]byte
}

func (m *memoryKV) get(key string) ([]byte, error) {
	if v, ok := m.writes[key]; ok {
		return v, nil
	}
	if v, ok := m.base[key]; ok {
		return v, nil
	}
	return nil, errKeyNotFound
}

func (m *memoryKV) set(key string, value []byte) error {
	if m.writes == nil {
		return errReadOnly
	}
	m.writes[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryKV) scan(prefix string, fn func(key string, value []byte) error) error {
	seen := make(map[string]struct{})
	var keys []string
	for _, src := range []map[string][]byte{m.writes, m.base} {
		for k := range src {
			if _, dup := seen[k]; dup || !strings.HasPrefix(k, prefix) {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, _ := m.get(k)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
