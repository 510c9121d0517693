package backend

import (
	"context"
	"sort"
	"time"

	"singletask/internal/timeutil"
)

// Task is a single Todoist item as returned by the REST API.
type Task struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Labels      []string  `json:"labels"`
	ParentID    *string   `json:"parent_id"`
	ProjectID   string    `json:"project_id"`
	Due         *DateInfo `json:"due"`
	IsCompleted *bool     `json:"is_completed,omitempty"` // REST responses only
	IsDeleted   *bool     `json:"is_deleted,omitempty"`
	Checked     *bool     `json:"checked,omitempty"` // Sync responses only
	Duration    *Duration `json:"duration,omitempty"`
}

// DateInfo is a task's due descriptor. Date holds either a date ("2024-05-01")
// or a date-time ("2024-05-01T09:30:00" / "2024-05-01T09:30:00Z").
type DateInfo struct {
	Date        string  `json:"date"`
	Datetime    string  `json:"datetime,omitempty"`
	IsRecurring bool    `json:"is_recurring"`
	String      string  `json:"string"`
	Timezone    *string `json:"timezone"`
}

// Duration is an estimated task length.
type Duration struct {
	Amount uint32       `json:"amount"`
	Unit   DurationUnit `json:"unit"`
}

// DurationUnit is "minute" or "day".
type DurationUnit string

const (
	UnitMinute DurationUnit = "minute"
	UnitDay    DurationUnit = "day"
)

// Priority uses the Todoist wire values: 1 is no priority, 4 is highest.
type Priority int

const (
	PriorityNone   Priority = 1
	PriorityLow    Priority = 2
	PriorityMedium Priority = 3
	PriorityHigh   Priority = 4
)

// String returns the display name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return "None"
	}
}

// Image is a random photo descriptor for the page sidebar.
type Image struct {
	URLs  ImageURLs  `json:"urls"`
	Links ImageLinks `json:"links"`
	User  ImageUser  `json:"user"`
}

// ImageURLs holds the photo renditions.
type ImageURLs struct {
	Full    string `json:"full"`
	Regular string `json:"regular"`
	Small   string `json:"small"`
}

// ImageLinks holds the photo page link.
type ImageLinks struct {
	HTML string `json:"html"`
}

// ImageUser credits the photographer.
type ImageUser struct {
	Name string `json:"name"`
}

// TaskSource is the remote task-management API.
type TaskSource interface {
	// ListByFilter returns the tasks matching a (possibly comma-separated)
	// filter expression, sorted by effective due date-time in loc.
	ListByFilter(ctx context.Context, token, filter string, loc *time.Location) ([]Task, error)

	// Complete closes a task. The remote side may no-op if it is already closed.
	Complete(ctx context.Context, token, taskID string) error

	// UserTimezone returns the account's configured timezone name.
	UserTimezone(ctx context.Context, token string) (string, error)
}

// ImageSource provides the page's random photo.
type ImageSource interface {
	Random(ctx context.Context) (*Image, error)
}

// EffectiveDue returns the instant a task sorts by. Date-only values count as
// 23:59 in loc; an embedded due timezone overrides loc for naive date-times.
// Datetime is preferred, with Date as the fallback when it is absent or
// unparseable. ok is false when the task has no usable due value.
func (t Task) EffectiveDue(loc *time.Location) (due time.Time, ok bool) {
	if t.Due == nil {
		return time.Time{}, false
	}

	if t.Due.Timezone != nil && *t.Due.Timezone != "" {
		if override, err := timeutil.ResolveTimezone(*t.Due.Timezone); err == nil {
			loc = override
		}
	}

	for _, raw := range []string{t.Due.Datetime, t.Due.Date} {
		if raw == "" {
			continue
		}
		if parsed, err := timeutil.ParseDateTime(raw, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// SortByDue stable-sorts tasks ascending by effective due date-time.
// Tasks without a due value keep their relative order after all dated tasks.
func SortByDue(tasks []Task, loc *time.Location) {
	type keyed struct {
		task Task
		due  time.Time
		ok   bool
	}
	items := make([]keyed, len(tasks))
	for i, t := range tasks {
		due, ok := t.EffectiveDue(loc)
		items[i] = keyed{task: t, due: due, ok: ok}
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].ok != items[b].ok {
			return items[a].ok
		}
		return items[a].ok && items[a].due.Before(items[b].due)
	})

	for i := range items {
		tasks[i] = items[i].task
	}
}

// FilterOut returns tasks whose IDs are not in excluded, preserving order.
func FilterOut(tasks []Task, excluded map[string]struct{}) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if _, skip := excluded[t.ID]; skip {
			continue
		}
		out = append(out, t)
	}
	return out
}
