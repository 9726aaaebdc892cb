// Package remote reaches the Shaper REST API from a client process.
package remote

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

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/session"
	"github.com/MaciejGL/shaper/internal/storage"
)

// HTTPClient implements session.Remote by calling the Shaper REST API.
// Used when the session runs locally (stdio MCP) but plans live on the
// server, typically reached over Tailscale.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies session.Remote.
var _ session.Remote = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// may be empty.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s returned %d: %s", e.Path, e.Status, e.Body)
}

// Unwrap lets errors.Is match storage.ErrNotFound on 404 responses.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return storage.ErrNotFound
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("httpclient: decode %s: %w", path, err)
		}
	}
	return nil
}

func (c *HTTPClient) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	var p models.Plan
	if err := c.do(ctx, http.MethodGet, "/api/v1/plans/"+url.PathEscape(planID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) PreviousLogs(ctx context.Context, planID string) (models.PreviousLogs, error) {
	var logs models.PreviousLogs
	if err := c.do(ctx, http.MethodGet, "/api/v1/plans/"+url.PathEscape(planID)+"/previous-logs", nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *HTTPClient) CompleteSet(ctx context.Context, req models.CompleteSetRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sets/"+url.PathEscape(req.SetID)+"/complete", req, nil)
}

func (c *HTTPClient) UpdateSetLog(ctx context.Context, req models.UpdateSetLogRequest) error {
	return c.do(ctx, http.MethodPut, "/api/v1/sets/"+url.PathEscape(req.SetID)+"/log", req, nil)
}

func (c *HTTPClient) CompleteExercise(ctx context.Context, req models.CompleteExerciseRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v1/exercises/"+url.PathEscape(req.ExerciseID)+"/complete", req, nil)
}

func (c *HTTPClient) AddSet(ctx context.Context, req models.AddSetRequest) (*models.Set, error) {
	var set models.Set
	if err := c.do(ctx, http.MethodPost, "/api/v1/exercises/"+url.PathEscape(req.ExerciseID)+"/sets", req, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *HTTPClient) RemoveSet(ctx context.Context, setID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/sets/"+url.PathEscape(setID), nil, nil)
}
