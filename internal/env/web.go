package env

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	webFetchTimeout = 60 * time.Second
	// Cap fetched pages so a pathological response cannot blow up the
	// conversation context.
	maxPageBytes = 512 * 1024
)

// WebEnv is the web-browsing surface. The orchestrator treats it as an
// opaque collaborator: a task is a URL to fetch, output is the page body.
type WebEnv struct {
	client *http.Client
}

// NewWebEnv creates a web surface with a bounded request timeout.
func NewWebEnv() *WebEnv {
	return &WebEnv{client: &http.Client{Timeout: webFetchTimeout}}
}

// Init is a no-op; the surface holds no resources until a task runs.
func (e *WebEnv) Init(_ context.Context) error { return nil }

// Run fetches the URL given as the task and returns the response body.
func (e *WebEnv) Run(ctx context.Context, task string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task, nil)
	if err != nil {
		return "", fmt.Errorf("build page request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return string(body), fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}
	return string(body), nil
}

// Close is a no-op.
func (e *WebEnv) Close(_ context.Context) error { return nil }
