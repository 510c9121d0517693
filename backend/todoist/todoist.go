// Package todoist provides the task source backed by the Todoist REST v2 and Sync v9 APIs.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"singletask/backend"
	"singletask/internal/utils"
)

const (
	// DefaultBaseURL is the Todoist API base URL
	DefaultBaseURL = "https://api.todoist.com"

	syncPath  = "/sync/v9/sync"
	tasksPath = "/rest/v2/tasks/"

	errSource = "todoist"
)

// Config holds Todoist connection settings
type Config struct {
	BaseURL string        // Override for testing
	Timeout time.Duration // HTTP client timeout, 30s when zero
}

// Backend implements backend.TaskSource against the Todoist API.
// The API token is supplied per call so one Backend serves every account.
type Backend struct {
	client  *http.Client
	baseURL string
}

// New creates a new Todoist backend
func New(cfg Config) *Backend {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Backend{
		client:  createHTTPClient(cfg.Timeout),
		baseURL: baseURL,
	}
}

// createHTTPClient creates an HTTP client with proper configuration
func createHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
	}
}

// Close releases idle connections
func (b *Backend) Close() error {
	if transport, ok := b.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// doRequest performs an authenticated Todoist API request and returns the
// response body. Non-2xx responses become transport errors; there is no retry.
func (b *Backend) doRequest(ctx context.Context, method, path, token string, body interface{}) ([]byte, error) {
	requestURL := b.baseURL + path

	var bodyReader io.Reader
	bodyText := "{}"
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyText = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, utils.ErrTransport(errSource, method, path, bodyText, "", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, utils.ErrTransport(errSource, method, path, bodyText, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.ErrTransport(errSource, method, path, bodyText, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		response := strings.TrimSpace(string(data))
		if response == "" {
			response = resp.Status
		}
		return nil, utils.ErrTransport(errSource, method, path, bodyText, response, nil)
	}

	return data, nil
}

// =============================================================================
// Task Operations
// =============================================================================

// ListByFilter queries every comma-separated sub-filter concurrently and
// returns the concatenated results sorted by effective due date-time.
// Matches are not deduplicated. The first failing sub-filter aborts the call.
func (b *Backend) ListByFilter(ctx context.Context, token, filter string, loc *time.Location) ([]backend.Task, error) {
	filters := strings.Split(filter, ",")
	results := make([][]backend.Task, len(filters))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range filters {
		g.Go(func() error {
			tasks, err := b.tasksForFilter(gctx, token, f)
			if err != nil {
				return err
			}
			results[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var tasks []backend.Task
	for _, r := range results {
		tasks = append(tasks, r...)
	}
	backend.SortByDue(tasks, loc)

	utils.Debugf("todoist: %d tasks for %d filters", len(tasks), len(filters))
	return tasks, nil
}

// tasksForFilter fetches the active tasks for a single filter
func (b *Backend) tasksForFilter(ctx context.Context, token, filter string) ([]backend.Task, error) {
	path := tasksPath + "?filter=" + url.QueryEscape(filter)

	data, err := b.doRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	var tasks []backend.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, utils.ErrDecode(errSource, err)
	}
	return tasks, nil
}

// syncCommand is one entry of a Sync API command batch
type syncCommand struct {
	Type   string            `json:"type"`
	UUID   string            `json:"uuid"`
	TempID string            `json:"temp_id"`
	Args   map[string]string `json:"args"`
}

// Complete closes a task through the Sync API with a fresh command UUID.
func (b *Backend) Complete(ctx context.Context, token, taskID string) error {
	id := uuid.New().String()
	body := map[string][]syncCommand{
		"commands": {{
			Type:   "item_close",
			UUID:   id,
			TempID: id,
			Args:   map[string]string{"id": taskID},
		}},
	}

	if _, err := b.doRequest(ctx, http.MethodPost, syncPath, token, body); err != nil {
		return err
	}

	utils.Debugf("todoist: closed task %s", taskID)
	return nil
}

// =============================================================================
// User Operations
// =============================================================================

// syncUserResponse is the subset of the Sync API user resource we read
type syncUserResponse struct {
	User struct {
		TzInfo struct {
			Timezone string `json:"timezone"`
		} `json:"tz_info"`
	} `json:"user"`
}

// UserTimezone returns the account's timezone name from the Sync API user resource.
func (b *Backend) UserTimezone(ctx context.Context, token string) (string, error) {
	body := map[string]interface{}{
		"resource_types": []string{"user"},
		"sync_token":     "*",
	}

	data, err := b.doRequest(ctx, http.MethodPost, syncPath, token, body)
	if err != nil {
		return "", err
	}

	var resp syncUserResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", utils.ErrDecode(errSource, err)
	}
	if resp.User.TzInfo.Timezone == "" {
		return "", utils.ErrDecode(errSource, fmt.Errorf("user resource has no tz_info.timezone"))
	}
	return resp.User.TzInfo.Timezone, nil
}

// Verify interface compliance at compile time
var _ backend.TaskSource = (*Backend)(nil)
