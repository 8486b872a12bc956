// Package viewer draws a running swarm in the terminal. It polls the HTTP
// API for snapshots, so it can watch a simulation in another process.
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/swarmdrop/internal/engine"
)

// Status mirrors GET /api/v1/status.
type Status struct {
	Name    string               `json:"name"`
	RunID   string               `json:"run_id"`
	Tick    uint64               `json:"tick"`
	Agents  int                  `json:"agents"`
	Hazards int                  `json:"hazards"`
	Sites   int                  `json:"sites"`
	Speed   float64              `json:"speed"`
	Running bool                 `json:"running"`
	Totals  []engine.CohortTotal `json:"totals"`
}

// Observer fetches swarm state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status fetches the run status.
func (o *Observer) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := o.fetchJSON(ctx, "/api/v1/status", &st); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	return &st, nil
}

// Snapshot fetches the current render snapshot.
func (o *Observer) Snapshot(ctx context.Context) (*engine.Snapshot, error) {
	var snap engine.Snapshot
	if err := o.fetchJSON(ctx, "/api/v1/snapshot", &snap); err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	return &snap, nil
}

// WaitForAPI polls the status endpoint with exponential backoff until it
// responds or ctx is done.
func (o *Observer) WaitForAPI(ctx context.Context) error {
	backoff := 250 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		if _, err := o.Status(ctx); err == nil {
			slog.Info("swarm API is ready", "url", o.BaseURL)
			return nil
		}
		slog.Info("swarm API not ready, retrying...", "backoff", backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("wait for %s: %w", o.BaseURL, ctx.Err())
		case <-t.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
