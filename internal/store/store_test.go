package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	mem := NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	return map[string]Store{"sqlite": sq, "memory": mem}
}

func put(t *testing.T, s Store, key, value string) {
	t.Helper()
	tx, err := s.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Set(key, []byte(value)))
	require.NoError(t, tx.Commit())
}

func TestGetMissing(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			tx, err := s.Begin(context.Background(), false)
			require.NoError(t, err)
			defer func() { _ = tx.Rollback() }()

			v, ok, err := tx.Get("absent")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, v)
		})
	}
}

func TestSetCommitGet(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			put(t, s, "k", "v1")
			put(t, s, "k", "v2")

			tx, err := s.Begin(context.Background(), false)
			require.NoError(t, err)
			defer func() { _ = tx.Rollback() }()

			v, ok, err := tx.Get("k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v2", string(v))
		})
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			tx, err := s.Begin(context.Background(), true)
			require.NoError(t, err)
			require.NoError(t, tx.Set("k", []byte("v")))

			v, ok, err := tx.Get("k")
			require.NoError(t, err)
			assert.True(t, ok, "transaction should see its own writes")
			assert.Equal(t, "v", string(v))
			require.NoError(t, tx.Rollback())

			rtx, err := s.Begin(context.Background(), false)
			require.NoError(t, err)
			defer func() { _ = rtx.Rollback() }()
			_, ok, err = rtx.Get("k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestReadOnlyRejectsSet(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			tx, err := s.Begin(context.Background(), false)
			require.NoError(t, err)
			defer func() { _ = tx.Rollback() }()

			assert.ErrorIs(t, tx.Set("k", []byte("v")), ErrReadOnly)
		})
	}
}

func TestFinishedTransaction(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			tx, err := s.Begin(context.Background(), true)
			require.NoError(t, err)
			require.NoError(t, tx.Commit())

			assert.ErrorIs(t, tx.Commit(), ErrTxDone)
			assert.ErrorIs(t, tx.Set("k", nil), ErrTxDone)
			_, _, err = tx.Get("k")
			assert.ErrorIs(t, err, ErrTxDone)
			assert.NoError(t, tx.Rollback())
		})
	}
}

func TestMemoryValuesAreCopied(t *testing.T) {
	s := NewMemory()
	value := []byte("abc")

	tx, err := s.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Set("k", value))
	require.NoError(t, tx.Commit())
	value[0] = 'z'

	rtx, err := s.Begin(context.Background(), false)
	require.NoError(t, err)
	got, _, err := rtx.Get("k")
	require.NoError(t, err)
	got[1] = 'z'

	again, _, err := rtx.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	put(t, s, "entry", `{"tasks":[]}`)
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	tx, err := reopened.Begin(context.Background(), false)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	v, ok, err := tx.Get("entry")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"tasks":[]}`, string(v))
}
