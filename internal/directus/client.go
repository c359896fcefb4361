// Package directus is a small REST client for the parts of the Directus API the archive
// admin uses: authentication, item reads/writes, aggregation, file deletion and field metadata.
package directus

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

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jk100/archiv-admin/internal/errs"
)

// Client talks to one Directus instance. Auth endpoints take tokens explicitly; all other
// calls authenticate through the token source installed with WithTokenSource.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock overrides time.Now (used to compute credential expiry).
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New constructs a client for baseURL (trailing slash is ignored).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

// WithTokenSource returns a copy of c whose requests carry a bearer token taken from ts
// on every call. The token is never refreshed here.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	cp := *c
	h := *c.http
	h.Transport = &oauth2.Transport{Source: ts, Base: c.http.Transport}
	cp.http = &h
	return &cp
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("directus: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("directus: %d: %s", e.Status, e.Message)
}

// Unwrap maps the status code onto the shared sentinels.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case http.StatusForbidden:
		return errs.ErrForbidden
	case http.StatusNotFound:
		return errs.ErrNotFound
	}
	return errs.ErrBackend
}

type errorBody struct {
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

// envelope is the {"data": ...} wrapper of every Directus response.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// do sends a request and decodes the "data" member into out (skipped when out is nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", errs.ErrBackend, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("directus",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", c.now().Sub(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: decode %s: %v", errs.ErrBackend, path, err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s data: %v", errs.ErrBackend, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	if json.Unmarshal(b, &eb) == nil && len(eb.Errors) > 0 {
		e.Message = eb.Errors[0].Message
		e.Code = eb.Errors[0].Extensions.Code
	}
	return e
}
