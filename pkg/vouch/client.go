// Package vouch is the Go client for the Vouch HTTP API, plus the
// client-side matching session used while authoring evidence: debounced
// re-matching against the server and selection preservation across
// successive match results.
package vouch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a decoded RFC 7807 problem response.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("vouch: %s (%d): %s", e.Title, e.Status, e.Detail)
	}
	return fmt.Sprintf("vouch: %s (%d)", e.Title, e.Status)
}

// Client talks to a Vouch server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do issues one API request. A non-nil out receives the decoded
// response body; error responses decode into *APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health returns the service health status. No auth required.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var h HealthStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// MatchClaims runs one matching pass on the server.
func (c *Client) MatchClaims(ctx context.Context, q MatchQuery) (*MatchResult, error) {
	var res MatchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/claims/match", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateEvidence creates an evidence item. The result may report link
// types that failed and need retry.
func (c *Client) CreateEvidence(ctx context.Context, p EvidencePayload) (*EvidenceResult, error) {
	var res EvidenceResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/evidence", p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Evidence fetches one evidence item with its link sets.
func (c *Client) Evidence(ctx context.Context, id string) (*Evidence, error) {
	var ev Evidence
	if err := c.do(ctx, http.MethodGet, "/api/v1/evidence/"+id, nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// UpdateEvidence applies a partial update. Absent payload fields leave
// the item untouched; a nil link slice leaves that link set alone.
func (c *Client) UpdateEvidence(ctx context.Context, id string, p EvidencePayload) (*EvidenceResult, error) {
	var res EvidenceResult
	if err := c.do(ctx, http.MethodPatch, "/api/v1/evidence/"+id, p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteEvidence deletes an evidence item and its links.
func (c *Client) DeleteEvidence(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/evidence/"+id, nil, nil)
}

// Usage returns an initiative's storage accounting.
func (c *Client) Usage(ctx context.Context, initiativeID string) (*UsageStats, error) {
	var u UsageStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/usage/"+initiativeID, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
