// Package process turns a single "next task" request into a Page: it
// resolves the account timezone, reads the task list through the cache
// while any requested completion runs alongside, and picks the first task.
package process

import (
	"context"
	"time"

	"singletask/backend"
	"singletask/internal/cache"
	"singletask/internal/timeutil"
	"singletask/internal/utils"
)

// AppName is the label of the home navigation link.
const AppName = "SingleTask"

const titleLength = 20

// Request carries the query parameters of one page view.
type Request struct {
	Token          string
	Filter         string
	CompleteTaskID string
	SkipTaskID     string
}

// Link is a navigation entry.
type Link struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

// Page is everything needed to render the next task.
type Page struct {
	Title      string         `json:"title"`
	Navigation []Link         `json:"navigation"`
	Token      string         `json:"-"`
	Filter     string         `json:"filter"`
	Timezone   string         `json:"timezone"`
	Tasks      []backend.Task `json:"tasks"`
	Task       *backend.Task  `json:"task,omitempty"`
	NoTask     bool           `json:"no_task"`
	ColorClass string         `json:"content_color_class,omitempty"`
	Image      *backend.Image `json:"image,omitempty"`

	// CompletionErr is set when the requested completion failed. The page
	// is still valid.
	CompletionErr error `json:"-"`
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor serves pages from a cache and its sources.
type Processor struct {
	cache  *cache.Cache
	tasks  backend.TaskSource
	images backend.ImageSource
	now    func() time.Time
}

// New creates a Processor.
func New(c *cache.Cache, tasks backend.TaskSource, images backend.ImageSource, opts ...Option) *Processor {
	p := &Processor{
		cache:  c,
		tasks:  tasks,
		images: images,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process builds the page for req.
func (p *Processor) Process(ctx context.Context, req Request) (*Page, error) {
	if req.Token == "" {
		return nil, utils.ErrMissingParameter("token")
	}
	if req.Filter == "" {
		return nil, utils.ErrMissingParameter("filter")
	}

	key := cache.Key(req.Token, req.Filter)

	tzName, err := p.cache.Timezone(ctx, key, func(ctx context.Context) (string, error) {
		return p.tasks.UserTimezone(ctx, req.Token)
	})
	if err != nil {
		return nil, err
	}
	loc, err := timeutil.ResolveTimezone(tzName)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context) ([]backend.Task, error) {
		return p.tasks.ListByFilter(ctx, req.Token, req.Filter, loc)
	}
	read, err := p.readWithCompletion(ctx, key, req, fetch, p.now().In(loc))
	if err != nil {
		return nil, err
	}
	tasks := read.tasks

	image, err := p.images.Random(ctx)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Title:         truncateRunes(req.Filter, titleLength),
		Navigation:    Navigation(),
		Token:         req.Token,
		Filter:        req.Filter,
		Timezone:      tzName,
		Tasks:         tasks,
		NoTask:        len(tasks) == 0,
		Image:         image,
		CompletionErr: read.completionErr,
	}
	if len(tasks) > 0 {
		first := tasks[0]
		page.Task = &first
		page.ColorClass = ColorClass(first.Priority)
	}
	return page, nil
}

// readWithCompletion reads the task list through the cache. When a
// completion is requested it is sent concurrently and always finishes
// before this returns, so a page is never built while the close is in
// flight. The completion runs detached from ctx cancellation.
func (p *Processor) readWithCompletion(ctx context.Context, key string, req Request, fetch cache.FetchFunc, now time.Time) (readResult, error) {
	if req.CompleteTaskID == "" {
		tasks, err := p.cache.ReadThrough(ctx, key, fetch, now, "", req.SkipTaskID)
		return readResult{tasks: tasks}, err
	}

	completed := make(chan error, 1)
	go func() {
		completed <- p.tasks.Complete(context.WithoutCancel(ctx), req.Token, req.CompleteTaskID)
	}()

	tasks, err := p.cache.ReadThrough(ctx, key, fetch, now, req.CompleteTaskID, req.SkipTaskID)
	completionErr := <-completed

	if completionErr != nil {
		utils.Warnf("could not complete task %s: %v", req.CompleteTaskID, completionErr)
	}
	return readResult{tasks: tasks, completionErr: completionErr}, err
}

type readResult struct {
	tasks         []backend.Task
	completionErr error
}

// Navigation returns the page's navigation links.
func Navigation() []Link {
	return []Link{{Name: AppName, Href: "/"}}
}

// ColorClass maps a priority to its display class.
func ColorClass(p backend.Priority) string {
	switch p {
	case backend.PriorityLow:
		return "has-text-primary"
	case backend.PriorityMedium:
		return "has-text-warning"
	case backend.PriorityHigh:
		return "has-text-danger"
	default:
		return "has-text-white"
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
