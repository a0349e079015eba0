// Package apiclient implements the RSVP backend over the HTTP API served by
// the server package.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/rsvp"
)

const maxBodyBytes = 4 << 20

// HTTPDoer describes the HTTP client used to reach the API.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the RSVP API. It satisfies rsvp.Backend.
type Client struct {
	baseURL string
	timeout time.Duration
	client  HTTPDoer
	log     zerolog.Logger
}

var _ rsvp.Backend = (*Client)(nil)

// New returns a client for the API at baseURL. Every call is bounded by
// timeout when it is positive.
func New(baseURL string, timeout time.Duration, client HTTPDoer, logger zerolog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  client,
		log:     logger.With().Str("component", "apiclient").Logger(),
	}
}

// LoadParty fetches the party for token. A reply without a party means the
// token is not registered.
func (c *Client) LoadParty(ctx context.Context, token string) (*models.Party, error) {
	const op = "load party"
	resp, err := c.get(ctx, op, "/api/party", token)
	if err != nil {
		return nil, err
	}

	var body models.PartyResponse
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, rsvp.NewError(rsvp.KindInvalidResponse, op, err)
	}
	if resp.status >= http.StatusInternalServerError {
		return nil, &rsvp.Error{Kind: rsvp.KindNetwork, Op: op, Message: body.Error}
	}
	if !body.OK || body.Party == nil {
		return nil, nil
	}
	party := body.Party.Party(token)
	return &party, nil
}

// FetchStatus fetches the stored confirmation for token.
func (c *Client) FetchStatus(ctx context.Context, token string) (*models.RawStatus, error) {
	const op = "fetch status"
	resp, err := c.get(ctx, op, "/api/rsvp-status", token)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, upstreamError(op, resp)
	}

	body, err := decodeStatus(resp.body)
	if err != nil {
		return nil, rsvp.NewError(rsvp.KindInvalidResponse, op, err)
	}
	if !body.ok {
		return nil, nil
	}
	return body.status, nil
}

// Submit posts a confirmation.
func (c *Client) Submit(ctx context.Context, payload models.SubmissionPayload) error {
	const op = "submit"
	data, err := json.Marshal(payload)
	if err != nil {
		return rsvp.NewError(rsvp.KindValidation, op, err)
	}

	resp, err := c.do(ctx, op, http.MethodPost, c.baseURL+"/api/rsvp", data)
	if err != nil {
		return err
	}

	switch {
	case resp.status == http.StatusConflict:
		body, err := decodeStatus(resp.body)
		if err != nil {
			c.log.Warn().Err(err).Msg("Conflict reply without a readable status")
			return &rsvp.ConflictError{}
		}
		return &rsvp.ConflictError{Status: body.status}
	case resp.status == http.StatusForbidden && reasonOf(resp.body) == models.ReasonDeadlinePassed:
		return rsvp.NewError(rsvp.KindDeadline, op, rsvp.ErrDeadlinePassed)
	case resp.status < 200 || resp.status >= 300:
		return upstreamError(op, resp)
	}

	var ack struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if json.Unmarshal(resp.body, &ack) == nil && ack.OK != nil && !*ack.OK {
		return &rsvp.Error{Kind: rsvp.KindNetwork, Op: op, Message: ack.Error}
	}
	return nil
}

// AdminRow is one stored RSVP row as listed for the hosts.
type AdminRow map[string]any

// AdminList returns every stored RSVP row.
func (c *Client) AdminList(ctx context.Context, password string) ([]AdminRow, error) {
	const op = "admin list"
	data, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, op, http.MethodPost, c.baseURL+"/api/admin-list", data)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusUnauthorized {
		return nil, &rsvp.Error{Kind: rsvp.KindValidation, Op: op, Message: "unauthorized"}
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, upstreamError(op, resp)
	}

	var body struct {
		OK   bool       `json:"ok"`
		Rows []AdminRow `json:"rows"`
	}
	dec := json.NewDecoder(bytes.NewReader(resp.body))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, rsvp.NewError(rsvp.KindInvalidResponse, op, err)
	}
	return body.Rows, nil
}

type response struct {
	status int
	body   []byte
}

func (r response) text() string {
	return strings.TrimSpace(string(r.body))
}

func (c *Client) get(ctx context.Context, op, path, token string) (response, error) {
	target := c.baseURL + path + "?" + url.Values{"token": {token}}.Encode()
	return c.do(ctx, op, http.MethodGet, target, nil)
}

func (c *Client) do(ctx context.Context, op, method, target string, body []byte) (response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return response{}, rsvp.NewError(rsvp.KindNetwork, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, classify(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, classify(op, err)
	}
	c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Msg("API call finished")
	return response{status: resp.StatusCode, body: data}, nil
}

func classify(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return rsvp.NewError(rsvp.KindTimeout, op, err)
	}
	return rsvp.NewError(rsvp.KindNetwork, op, err)
}

// upstreamError keeps the server's own message so it can be shown verbatim.
func upstreamError(op string, resp response) error {
	var body struct {
		Error string `json:"error"`
		Text  string `json:"text"`
	}
	msg := ""
	if json.Unmarshal(resp.body, &body) == nil {
		msg = firstNonEmpty(body.Error, body.Text)
	} else {
		msg = resp.text()
	}
	return &rsvp.Error{
		Kind:    rsvp.KindNetwork,
		Op:      op,
		Message: msg,
		Err:     fmt.Errorf("status %d", resp.status),
	}
}

type statusBody struct {
	ok     bool
	reason string
	status *models.RawStatus
}

// decodeStatus accepts any JSON value in the status field. Only objects count
// as a stored confirmation.
func decodeStatus(data []byte) (statusBody, error) {
	var wire struct {
		OK     bool            `json:"ok"`
		Reason string          `json:"reason"`
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return statusBody{}, err
	}
	out := statusBody{ok: wire.OK, reason: wire.Reason}
	raw := bytes.TrimSpace(wire.Status)
	if len(raw) > 0 && raw[0] == '{' {
		var status models.RawStatus
		if err := json.Unmarshal(raw, &status); err != nil {
			return statusBody{}, err
		}
		out.status = &status
	}
	if out.status == nil {
		out.ok = false
	}
	return out, nil
}

func reasonOf(data []byte) string {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.Unmarshal(data, &body)
	return body.Reason
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
