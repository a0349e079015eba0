// Package sheets talks to the spreadsheet automation endpoint that stores the
// guest list and the RSVP rows.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Lookup actions understood by the GET endpoint.
const (
	ActionParty      = "party"
	ActionRSVPStatus = "rsvpStatus"
	ActionList       = "list"
)

const maxBodyBytes = 4 << 20

// ErrNotConfigured is returned when the endpoint needed for a call is unset.
var ErrNotConfigured = errors.New("spreadsheet endpoint not configured")

// HTTPDoer describes the HTTP client used to reach the spreadsheet.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the spreadsheet endpoints.
type Config struct {
	GetURL  string
	PostURL string
	Secret  string
	Timeout time.Duration
}

// Response is a raw upstream reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the trimmed body.
func (r *Response) Text() string {
	return strings.TrimSpace(string(r.Body))
}

// StatusLookup is a parsed rsvpStatus reply. Status keeps the row exactly as
// the sheet sent it.
type StatusLookup struct {
	OK     bool            `json:"ok"`
	Status json.RawMessage `json:"status"`
}

// Found reports whether a status row is present. Only a JSON object counts
// as a row.
func (s *StatusLookup) Found() bool {
	if s == nil || !s.OK {
		return false
	}
	raw := bytes.TrimSpace(s.Status)
	return len(raw) > 0 && raw[0] == '{'
}

// Client calls the spreadsheet automation endpoints.
type Client struct {
	cfg    Config
	client HTTPDoer
}

// NewClient returns a client. A nil doer uses an http.Client bounded by
// cfg.Timeout.
func NewClient(cfg Config, client HTTPDoer) *Client {
	cfg.GetURL = strings.TrimSpace(cfg.GetURL)
	cfg.PostURL = strings.TrimSpace(cfg.PostURL)
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, client: client}
}

// CanRead reports whether lookups are configured.
func (c *Client) CanRead() bool { return c.cfg.GetURL != "" }

// CanWrite reports whether submissions are configured.
func (c *Client) CanWrite() bool { return c.cfg.PostURL != "" }

// CanList reports whether the admin listing is configured.
func (c *Client) CanList() bool { return c.cfg.GetURL != "" && c.cfg.Secret != "" }

// Lookup performs a GET for action keyed by token.
func (c *Client) Lookup(ctx context.Context, action, token string) (*Response, error) {
	return c.get(ctx, url.Values{"action": {action}, "token": {token}})
}

// List returns every RSVP row. It requires the admin secret.
func (c *Client) List(ctx context.Context) (*Response, error) {
	if c.cfg.Secret == "" {
		return nil, ErrNotConfigured
	}
	return c.get(ctx, url.Values{"action": {ActionList}, "secret": {c.cfg.Secret}})
}

// Status looks up the stored RSVP row for token. Non-2xx replies are errors.
func (c *Client) Status(ctx context.Context, token string) (*StatusLookup, error) {
	resp, err := c.Lookup(ctx, ActionRSVPStatus, token)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("rsvp status returned %d", resp.StatusCode)
	}
	var lookup StatusLookup
	if err := json.Unmarshal(resp.Body, &lookup); err != nil {
		return nil, fmt.Errorf("failed to decode rsvp status: %w", err)
	}
	return &lookup, nil
}

// Append posts a submission body unchanged.
func (c *Client) Append(ctx context.Context, body []byte) (*Response, error) {
	if c.cfg.PostURL == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.PostURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, params url.Values) (*Response, error) {
	if c.cfg.GetURL == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(c.cfg.GetURL)
	if err != nil {
		return nil, fmt.Errorf("parse spreadsheet url: %w", err)
	}
	q := u.Query()
	for key, values := range params {
		q[key] = values
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach spreadsheet: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
