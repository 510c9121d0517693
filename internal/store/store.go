// Package store provides the transactional key-value persistence behind the
// task cache.
package store

import (
	"context"
	"errors"
)

// ErrReadOnly is returned by Set on a transaction opened without write access.
var ErrReadOnly = errors.New("store: transaction is read-only")

// ErrTxDone is returned when a transaction is used after Commit or Rollback.
var ErrTxDone = errors.New("store: transaction already finished")

// Store opens transactions over a flat key space of opaque byte values.
type Store interface {
	Begin(ctx context.Context, writable bool) (Tx, error)
	Close() error
}

// Tx is a single unit of work. Rollback after Commit is a no-op so callers
// can always defer it.
type Tx interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Commit() error
	Rollback() error
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
