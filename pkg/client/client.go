// Package client is a thin HTTP client for MU Kernel's daemon, used by
// CLI subcommands (and any other sibling process) that would rather
// route through a running daemon's already-loaded Graph Engine than
// open the mubase for themselves (spec.md §4.8).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/muql"
)

// Client talks to a single daemon instance over HTTP.
type Client struct {
	baseURL    string
	adminToken string
	http       *http.Client
}

// New returns a Client targeting baseURL (e.g. "http://127.0.0.1:4577").
// adminToken may be empty when the daemon has no auth gate configured.
func New(baseURL, adminToken string) *Client {
	return &Client{
		baseURL:    baseURL,
		adminToken: adminToken,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Status is the decoded response of GET /status.
type Status struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	NodeCount     int     `json:"node_count"`
	EdgeCount     int     `json:"edge_count"`
	SchemaVersion int     `json:"schema_version"`
	WSConnections int     `json:"ws_connections"`
}

// Status probes GET /status, returning kernel.ErrUpstream if the daemon
// cannot be reached at all (distinct from a non-2xx response, which
// surfaces the daemon's own JSON error body).
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query runs src through the daemon's MUQL executor. The daemon reports a
// query its executor rejects in the "error" field of a 200 response;
// Query surfaces that as kernel.ErrConfig, like any other rejection.
func (c *Client) Query(ctx context.Context, src string) (*muql.Result, error) {
	var out struct {
		muql.Result
		Error string `json:"error"`
	}
	body := map[string]string{"muql": src}
	if err := c.do(ctx, http.MethodPost, "/query", body, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("POST /query: %s: %w", out.Error, kernel.ErrConfig)
	}
	return &out.Result, nil
}

// NodeRef names a node and optionally restricts traversal to a set of
// edge types, matching /impact and /ancestors' request body.
type NodeRef struct {
	Node      model.NodeID    `json:"node"`
	EdgeTypes []model.EdgeType `json:"edge_types,omitempty"`
}

// idList is the {"node_ids": [...]} shape shared by /impact, /ancestors
// and /nodes/{id}/neighbors.
type idList struct {
	NodeIDs []model.NodeID `json:"node_ids"`
}

// Impact calls POST /impact.
func (c *Client) Impact(ctx context.Context, ref NodeRef) ([]model.NodeID, error) {
	var out idList
	if err := c.do(ctx, http.MethodPost, "/impact", ref, &out); err != nil {
		return nil, err
	}
	return out.NodeIDs, nil
}

// Ancestors calls POST /ancestors.
func (c *Client) Ancestors(ctx context.Context, ref NodeRef) ([]model.NodeID, error) {
	var out idList
	if err := c.do(ctx, http.MethodPost, "/ancestors", ref, &out); err != nil {
		return nil, err
	}
	return out.NodeIDs, nil
}

// Cycles calls POST /cycles.
func (c *Client) Cycles(ctx context.Context, edgeTypes []model.EdgeType) ([][]model.NodeID, error) {
	var out struct {
		Cycles [][]model.NodeID `json:"cycles"`
	}
	body := map[string][]model.EdgeType{"edge_types": edgeTypes}
	if err := c.do(ctx, http.MethodPost, "/cycles", body, &out); err != nil {
		return nil, err
	}
	return out.Cycles, nil
}

// ContextResult mirrors the subset of pkg/context.Result's field names
// that cross the wire, without importing pkg/context itself (which pulls
// in the embedding/graph engine machinery a thin CLI client has no
// business depending on). Field names must match context.Result's
// exported fields exactly: neither type carries json tags, so the wire
// format is encoding/json's default field-name-as-key behavior.
type ContextResult struct {
	MUText     string
	Nodes      []*model.Node
	TokenCount int
	Strategy   string
}

// Context calls POST /context.
func (c *Client) Context(ctx context.Context, question string, maxTokens int) (*ContextResult, error) {
	var out ContextResult
	body := map[string]any{"question": question, "max_tokens": maxTokens}
	if err := c.do(ctx, http.MethodPost, "/context", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do issues an HTTP request against the daemon and decodes a JSON
// response into out. A non-2xx status with a decodable {"error": "..."}
// body is surfaced as kernel.ErrConfig (the daemon rejected the
// request); a transport failure (daemon not running, connection
// refused) is surfaced as kernel.ErrUpstream so callers can fall back to
// a direct, read-only mubase open per spec.md §4.8.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, err, kernel.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s: %w", method, path, apiErr.Error, kernel.ErrConfig)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
