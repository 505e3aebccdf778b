// Package client is a small HTTP client for the devtools surface of a
// running application: health, module list, and the graph snapshot.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tascaenzo/trinacria/module"
)

// Client talks to one application instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the given base URL, e.g.
// "http://localhost:8080".
func New(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Health reports the application's health status.
type Health struct {
	Status  string `json:"status"`
	Modules int    `json:"modules"`
}

// Health fetches the health endpoint.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/healthz", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Modules fetches the registered module names.
func (c *Client) Modules(ctx context.Context) ([]string, error) {
	var out struct {
		Modules []string `json:"modules"`
	}
	if err := c.get(ctx, "/_trinacria/modules", &out); err != nil {
		return nil, err
	}
	return out.Modules, nil
}

// Graph fetches the module graph snapshot.
func (c *Client) Graph(ctx context.Context) (*module.Graph, error) {
	var out module.Graph
	if err := c.get(ctx, "/_trinacria/graph", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	return nil
}
