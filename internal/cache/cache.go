// Package cache keeps each account's filtered task list in a store and
// decides when it has to be fetched again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"singletask/backend"
	"singletask/internal/store"
	"singletask/internal/utils"
)

// DefaultFreshWindow is how long a fetched list is served without refetching.
const DefaultFreshWindow = 15 * time.Minute

const errSource = "cache"

// FetchFunc loads the full remote task list for a key's filter.
type FetchFunc func(ctx context.Context) ([]backend.Task, error)

// Cache reads and writes entries through a store.Store. All work on one key
// is serialized; different keys proceed independently.
type Cache struct {
	store  store.Store
	window time.Duration
	locks  *keyedMutex
}

// New creates a cache over s. A non-positive window selects DefaultFreshWindow.
func New(s store.Store, window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultFreshWindow
	}
	return &Cache{store: s, window: window, locks: newKeyedMutex()}
}

// Window returns the freshness window in use.
func (c *Cache) Window() time.Duration {
	return c.window
}

// Key derives the cache key for an account token and filter expression.
func Key(token, filter string) string {
	sum := sha256.Sum256([]byte(token + "\x00" + filter))
	return hex.EncodeToString(sum[:])
}

// GetOrCreate returns the stored entry for key, or an empty one. The empty
// entry is not persisted.
func (c *Cache) GetOrCreate(ctx context.Context, key string) (*Entry, error) {
	unlock := c.locks.Lock(key)
	defer unlock()
	return c.load(ctx, key)
}

// ReadThrough returns the task list for key with completingID, skipID and
// every suppressed id removed. A fresh entry is trimmed in place; otherwise
// fetch replaces it and starts a new suppression generation holding only
// skipID.
func (c *Cache) ReadThrough(ctx context.Context, key string, fetch FetchFunc, now time.Time, completingID, skipID string) ([]backend.Task, error) {
	unlock := c.locks.Lock(key)
	defer unlock()

	entry, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}

	state := entry.freshness(now, c.window, completingID, skipID)
	switch state {
	case hit:
		utils.Debugf("cache hit for %s", shortKey(key))
		entry.suppress(skipID)
		entry.Tasks = entry.visible(completingID, "")
	default:
		if state == expired {
			utils.Debugf("cache expired or no tasks for %s", shortKey(key))
		} else {
			utils.Debugf("cache miss for %s", shortKey(key))
		}

		tasks, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		entry.SuppressedIDs = nil
		entry.suppress(skipID)
		entry.Tasks = tasks
		entry.Tasks = entry.visible(completingID, "")

		fetchedAt := now
		if entry.FetchedAt != nil && entry.FetchedAt.After(now) {
			fetchedAt = *entry.FetchedAt
		}
		entry.FetchedAt = &fetchedAt
	}

	if err := c.save(ctx, key, entry); err != nil {
		return nil, err
	}
	return cloneTasks(entry.Tasks), nil
}

// Timezone returns the timezone name cached on key's entry, calling resolve
// and persisting the answer the first time.
func (c *Cache) Timezone(ctx context.Context, key string, resolve func(ctx context.Context) (string, error)) (string, error) {
	unlock := c.locks.Lock(key)
	defer unlock()

	entry, err := c.load(ctx, key)
	if err != nil {
		return "", err
	}
	if entry.Timezone != "" {
		return entry.Timezone, nil
	}

	tz, err := resolve(ctx)
	if err != nil {
		return "", err
	}
	entry.Timezone = tz
	if err := c.save(ctx, key, entry); err != nil {
		return "", err
	}
	utils.Debugf("cached timezone %s for %s", tz, shortKey(key))
	return tz, nil
}

// =============================================================================
// Persistence
// =============================================================================

func (c *Cache) load(ctx context.Context, key string) (*Entry, error) {
	tx, err := c.store.Begin(ctx, false)
	if err != nil {
		return nil, utils.ErrPersistence(errSource, err)
	}
	defer func() { _ = tx.Rollback() }()

	data, ok, err := tx.Get(key)
	if err != nil {
		return nil, utils.ErrPersistence(errSource, err)
	}
	if !ok {
		return &Entry{Tasks: []backend.Task{}}, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, utils.ErrDecode(errSource, err)
	}
	if entry.Tasks == nil {
		entry.Tasks = []backend.Task{}
	}
	return &entry, nil
}

func (c *Cache) save(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return utils.ErrDecode(errSource, err)
	}

	tx, err := c.store.Begin(ctx, true)
	if err != nil {
		return utils.ErrPersistence(errSource, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Set(key, data); err != nil {
		return utils.ErrPersistence(errSource, err)
	}
	if err := tx.Commit(); err != nil {
		return utils.ErrPersistence(errSource, err)
	}
	return nil
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

func cloneTasks(tasks []backend.Task) []backend.Task {
	out := make([]backend.Task, len(tasks))
	copy(out, tasks)
	return out
}
