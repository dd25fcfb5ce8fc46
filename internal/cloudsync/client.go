package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kandil-code/kandil/internal/config"
	"github.com/kandil-code/kandil/internal/project"
)

// requestTimeout is the fixed per-call network timeout. A call that
// exceeds it fails that single operation; nothing retries within the
// same pass.
const requestTimeout = 30 * time.Second

// Client speaks the remote's PostgREST-style wire protocol:
//
//	GET    {base}/rest/v1/projects            list projects
//	POST   {base}/rest/v1/{table}?id=eq.{id}  upsert, 2xx = success
//	DELETE {base}/rest/v1/{table}?id=eq.{id}  delete, 2xx = success
//
// Every request carries the apikey and Authorization headers.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client from resolved credentials.
func NewClient(creds config.Sync) *Client {
	return &Client{
		baseURL: creds.BaseURL,
		apiKey:  creds.APIKey,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Upsert sends the payload to the addressed resource. Any 2xx response
// is success.
func (c *Client) Upsert(ctx context.Context, table, recordID string, payload json.RawMessage) (int, error) {
	endpoint := c.resourceURL(table, recordID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build upsert request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	return c.do(req)
}

// Delete removes the addressed resource. Any 2xx response is success.
func (c *Client) Delete(ctx context.Context, table, recordID string) (int, error) {
	endpoint := c.resourceURL(table, recordID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build delete request: %w", err)
	}
	c.setHeaders(req)

	return c.do(req)
}

// ListProjects retrieves the remote project list for an external merge
// step.
func (c *Client) ListProjects(ctx context.Context) ([]*project.Project, error) {
	endpoint := c.baseURL + "/rest/v1/projects"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote projects: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote returned %d for project list", resp.StatusCode)
	}

	var projects []*project.Project
	if err := json.NewDecoder(resp.Body).Decode(&projects); err != nil {
		return nil, fmt.Errorf("failed to decode remote projects: %w", err)
	}
	return projects, nil
}

// do executes a mutating request and returns the response status.
// A non-2xx status is returned with a nil error; the engine turns it
// into a SyncError carrying the code.
func (c *Client) do(req *http.Request) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Client) resourceURL(table, recordID string) string {
	return fmt.Sprintf("%s/rest/v1/%s?id=eq.%s", c.baseURL, table, url.QueryEscape(recordID))
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
