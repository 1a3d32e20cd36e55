// Package client is the SDK for the netlord daemon: submit patch batches,
// import netlists, re-run checks, and read graphs and reports over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rmax-ai/netlord/pkg/graph"
	"github.com/rmax-ai/netlord/pkg/netlist"
	"github.com/rmax-ai/netlord/pkg/patch"
	"github.com/rmax-ai/netlord/pkg/rules"
)

// Client is the netlord SDK client.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	backoff  BackoffStrategy

	// MaxRetries bounds the rebase attempts of ApplyPatchRetry.
	MaxRetries int
}

// NewClient creates a new netlord client.
// endpoint defaults to "http://127.0.0.1:8090" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff:    DefaultBackoff(),
		MaxRetries: 3,
	}
}

// SetToken sets the bearer token sent with mutating requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// SetBackoff replaces the retry backoff strategy.
func (c *Client) SetBackoff(b BackoffStrategy) {
	c.backoff = b
}

// ApplyPatch submits one batch against base. On a stale base the returned
// error is a *StaleBaseError carrying the daemon's latest version.
func (c *Client) ApplyPatch(ctx context.Context, base int64, batch *patch.Batch, ruleSet string) (*PatchResult, error) {
	body := map[string]any{
		"base":     base,
		"batch":    batch,
		"rule_set": ruleSet,
	}
	return c.submit(ctx, "/v1/patch", body)
}

// ApplyPatchRetry submits the batch and, when the base goes stale underneath
// it, rebases onto the daemon's latest version and retries with backoff. Use
// it only for batches whose ops do not depend on the exact base state, such
// as adding fresh subcircuits.
func (c *Client) ApplyPatchRetry(ctx context.Context, base int64, batch *patch.Batch, ruleSet string) (*PatchResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff.Next(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.ApplyPatch(ctx, base, batch, ruleSet)
		if err == nil {
			return result, nil
		}

		stale, ok := err.(*StaleBaseError)
		if !ok {
			return nil, err
		}
		base = stale.Latest
		lastErr = err
	}
	return nil, fmt.Errorf("gave up after %d rebase attempts: %w", c.MaxRetries, lastErr)
}

// ImportNetlist submits a whole netlist document as one atomic batch.
func (c *Client) ImportNetlist(ctx context.Context, base int64, nl *netlist.Netlist, ruleSet string) (*PatchResult, error) {
	body := map[string]any{
		"base":     base,
		"netlist":  nl,
		"rule_set": ruleSet,
	}
	return c.submit(ctx, "/v1/netlist", body)
}

// submit posts a mutation body and decodes the shared response shape.
func (c *Client) submit(ctx context.Context, path string, body map[string]any) (*PatchResult, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var result PatchResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &result, nil

	case resp.StatusCode == http.StatusConflict:
		var stale StaleBaseError
		if err := json.NewDecoder(resp.Body).Decode(&stale); err != nil {
			return nil, fmt.Errorf("failed to decode conflict response: %w", err)
		}
		return nil, &stale

	case resp.StatusCode == http.StatusUnprocessableEntity, resp.StatusCode == http.StatusBadRequest:
		var rejected BatchRejectedError
		if err := json.NewDecoder(resp.Body).Decode(&rejected); err != nil {
			return nil, fmt.Errorf("request rejected with status %d", resp.StatusCode)
		}
		return nil, &rejected

	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

// Validate asks the daemon to re-run a rule set against an existing version.
// Version 0 means latest.
func (c *Client) Validate(ctx context.Context, version int64, ruleSet string) (*rules.Report, error) {
	raw, err := json.Marshal(map[string]any{
		"version":  version,
		"rule_set": ruleSet,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v1/validate", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var report rules.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetGraph fetches a graph version. Version 0 means latest.
func (c *Client) GetGraph(ctx context.Context, version int64) (*graph.Version, error) {
	url := c.endpoint + "/v1/graph"
	if version > 0 {
		url = fmt.Sprintf("%s?version=%d", url, version)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, graph.ErrVersionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var v graph.Version
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetReport fetches the latest archived report, optionally filtered by rule set.
func (c *Client) GetReport(ctx context.Context, ruleSet string) (*rules.Report, error) {
	url := c.endpoint + "/v1/report"
	if ruleSet != "" {
		url += "?rule_set=" + ruleSet
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var report rules.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListVersions fetches version history metadata, newest first.
func (c *Client) ListVersions(ctx context.Context, limit int) ([]VersionInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	url := fmt.Sprintf("%s/v1/versions?limit=%d", c.endpoint, limit)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var out []VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/v1/health", nil)
	if err != nil {
		return Status{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return Status{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Status{}, err
	}

	return status, nil
}
