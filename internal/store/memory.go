package store

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process Store. Entries never expire; writes become
// visible to other transactions only on Commit.
type Memory struct {
	mu    sync.RWMutex
	items *gocache.Cache
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: gocache.New(gocache.NoExpiration, 0)}
}

// Begin starts a transaction.
func (m *Memory) Begin(_ context.Context, writable bool) (Tx, error) {
	tx := &memoryTx{store: m, writable: writable}
	if writable {
		tx.pending = make(map[string][]byte)
	}
	return tx, nil
}

// Close drops all entries.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items.Flush()
	return nil
}

func (m *Memory) get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false
	}
	return clone(v.([]byte)), true
}

func (m *Memory) apply(pending map[string][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range pending {
		m.items.Set(k, v, gocache.NoExpiration)
	}
}

type memoryTx struct {
	store    *Memory
	writable bool
	pending  map[string][]byte
	done     bool
}

func (tx *memoryTx) Get(key string) ([]byte, bool, error) {
	if tx.done {
		return nil, false, ErrTxDone
	}
	if v, ok := tx.pending[key]; ok {
		return clone(v), true, nil
	}
	v, ok := tx.store.get(key)
	return v, ok, nil
}

func (tx *memoryTx) Set(key string, value []byte) error {
	if tx.done {
		return ErrTxDone
	}
	if !tx.writable {
		return ErrReadOnly
	}
	tx.pending[key] = clone(value)
	return nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	if len(tx.pending) > 0 {
		tx.store.apply(tx.pending)
	}
	tx.pending = nil
	return nil
}

func (tx *memoryTx) Rollback() error {
	tx.done = true
	tx.pending = nil
	return nil
}

var _ Store = (*Memory)(nil)
