// Package unsplash provides the random sidebar photo from the Unsplash API.
package unsplash

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"singletask/backend"
	"singletask/internal/utils"
)

const (
	// DefaultBaseURL is the Unsplash API base URL
	DefaultBaseURL = "https://api.unsplash.com"

	randomPath     = "/photos/random?query=nature"
	acceptVersion  = "v1"
	errSource      = "unsplash"
	defaultTimeout = 30 * time.Second
)

// Config holds Unsplash connection settings
type Config struct {
	APIKey  string // Client-ID access key; empty selects the stub
	BaseURL string // Override for testing
	Live    bool   // Production mode; false always serves the stub
	Timeout time.Duration
}

// Client implements backend.ImageSource
type Client struct {
	config  Config
	client  *http.Client
	baseURL string
}

// New creates a new Unsplash client
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Random returns a random nature photo, or the stub outside production
// or when no API key is configured.
func (c *Client) Random(ctx context.Context) (*backend.Image, error) {
	if !c.config.Live || c.config.APIKey == "" {
		return Stub(), nil
	}

	url := c.baseURL + randomPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, utils.ErrTransport(errSource, http.MethodGet, url, "{}", "", err)
	}
	req.Header.Set("Accept-Version", acceptVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Client-ID "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, utils.ErrTransport(errSource, http.MethodGet, url, "{}", "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.ErrTransport(errSource, http.MethodGet, url, "{}", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, utils.ErrTransport(errSource, http.MethodGet, url, "{}", strings.TrimSpace(string(data)), nil)
	}

	var image backend.Image
	if err := json.Unmarshal(data, &image); err != nil {
		return nil, utils.ErrDecode(errSource, err)
	}
	return &image, nil
}

// Stub returns the fixed image used in development.
func Stub() *backend.Image {
	return &backend.Image{
		URLs: backend.ImageURLs{
			Full:    "https://images.unsplash.com/photo-1731453171960-0f8c884c72a4?crop=entropy&cs=srgb&fm=jpg&ixid=M3w3NDgzNHwwfDF8cmFuZG9tfHx8fHx8fHx8MTczMzAzMDYxOHw&ixlib=rb-4.0.3&q=85",
			Regular: "https://images.unsplash.com/photo-1731453171960-0f8c884c72a4?crop=entropy&cs=tinysrgb&fit=max&fm=jpg&ixid=M3w3NDgzNHwwfDF8cmFuZG9tfHx8fHx8fHx8MTczMzAzMDYxOHw&ixlib=rb-4.0.3&q=80&w=1080",
			Small:   "https://images.unsplash.com/photo-1731453171960-0f8c884c72a4?crop=entropy&cs=tinysrgb&fit=max&fm=jpg&ixid=M3w3NDgzNHwwfDF8cmFuZG9tfHx8fHx8fHx8MTczMzAzMDYxOHw&ixlib=rb-4.0.3&q=80&w=400",
		},
		Links: backend.ImageLinks{
			HTML: "https://unsplash.com/photos/a-blurry-photo-of-a-beach-at-sunset-Qn2nubHzL7w",
		},
		User: backend.ImageUser{
			Name: "Adrian Botica",
		},
	}
}

// Verify interface compliance at compile time
var _ backend.ImageSource = (*Client)(nil)
