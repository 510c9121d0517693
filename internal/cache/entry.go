package cache

import (
	"time"

	"singletask/backend"
)

// Entry is the cached task list for one key.
type Entry struct {
	Tasks         []backend.Task `json:"tasks"`
	SuppressedIDs []string       `json:"suppressed_ids"`
	FetchedAt     *time.Time     `json:"fetched_at,omitempty"`
	Timezone      string         `json:"timezone,omitempty"`
}

// IsFresh reports whether the entry can serve a request at now. The entry
// must have been fetched less than window ago and still show at least one
// task once completingID, skipID and every suppressed id are removed.
func (e *Entry) IsFresh(now time.Time, window time.Duration, completingID, skipID string) bool {
	if e.FetchedAt == nil || now.Sub(*e.FetchedAt) >= window {
		return false
	}
	return len(e.visible(completingID, skipID)) > 0
}

// visible returns the tasks left after removing completingID, skipID and
// all suppressed ids.
func (e *Entry) visible(completingID, skipID string) []backend.Task {
	excluded := make(map[string]struct{}, len(e.SuppressedIDs)+2)
	for _, id := range e.SuppressedIDs {
		excluded[id] = struct{}{}
	}
	if completingID != "" {
		excluded[completingID] = struct{}{}
	}
	if skipID != "" {
		excluded[skipID] = struct{}{}
	}
	return backend.FilterOut(e.Tasks, excluded)
}

// suppress adds id to the suppressed set. Empty ids and duplicates are ignored.
func (e *Entry) suppress(id string) {
	if id == "" || e.isSuppressed(id) {
		return
	}
	e.SuppressedIDs = append(e.SuppressedIDs, id)
}

func (e *Entry) isSuppressed(id string) bool {
	for _, s := range e.SuppressedIDs {
		if s == id {
			return true
		}
	}
	return false
}

// freshness is the outcome of inspecting an entry before a read.
type freshness int

const (
	// hit: recent data with something left to show
	hit freshness = iota
	// expired: data is old, or nothing would be left to show
	expired
	// miss: never fetched
	miss
)

func (e *Entry) freshness(now time.Time, window time.Duration, completingID, skipID string) freshness {
	switch {
	case e.FetchedAt == nil:
		return miss
	case e.IsFresh(now, window, completingID, skipID):
		return hit
	default:
		return expired
	}
}
