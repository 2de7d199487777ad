// Package upstream is the typed client of the business REST backend.
//
// Every response is an envelope {data, meta?, success_message?} with
// snake_case fields. Wire DTOs are mapped into domain view models here, once,
// so nothing downstream digs through optional nesting.
package upstream

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

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/gosuda/backoffice/internal/domain"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Tokens supplies the bearer token. Nil makes the client public: no
	// Authorization header is ever sent.
	Tokens oauth2.TokenSource
	// RatePerSecond and Burst bound outgoing requests. Zero disables limiting.
	RatePerSecond float64
	Burst         int
	// Transport is the base round tripper, http.DefaultTransport when nil.
	Transport http.RoundTripper
}

type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  oauth2.TokenSource
	limiter *rate.Limiter
}

// New creates a Client for the backend at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("upstream.New: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream.New: base url %q must be http or https", opts.BaseURL)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.Tokens != nil {
		transport = &oauth2.Transport{Source: opts.Tokens, Base: transport}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Transport: transport, Timeout: timeout},
		tokens: opts.Tokens,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return c, nil
}

// Authenticated reports whether the client sends a bearer token.
func (c *Client) Authenticated() bool {
	return c.tokens != nil
}

// Meta is the non-data part of an envelope.
type Meta struct {
	Pagination *domain.Pagination
	Message    string
}

type envelope struct {
	Data           json.RawMessage `json:"data"`
	Meta           *wireMeta       `json:"meta,omitempty"`
	SuccessMessage string          `json:"success_message,omitempty"`
}

type wireMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func (m *wireMeta) pagination() *domain.Pagination {
	if m == nil {
		return nil
	}
	return &domain.Pagination{
		Page:       m.Page,
		PerPage:    m.PerPage,
		Total:      m.Total,
		TotalPages: m.TotalPages,
	}
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

// Do sends a JSON request and decodes the envelope's data into out (which may
// be nil). payload, when non-nil, is encoded as the JSON body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, payload, out any) (Meta, error) {
	req := request{method: method, path: path, query: query}
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return Meta{}, fmt.Errorf("upstream.Client.Do: encode payload: %w", err)
		}
		req.body = bytes.NewReader(buf)
		req.contentType = "application/json"
	}
	return c.send(ctx, req, out)
}

func (c *Client) send(ctx context.Context, r request, out any) (Meta, error) {
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil || tok == nil || tok.AccessToken == "" {
			return Meta{}, fmt.Errorf("upstream %s %s: %w", r.method, r.path, domain.ErrMissingAuth)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Meta{}, fmt.Errorf("upstream %s %s: rate limit: %w", r.method, r.path, err)
		}
	}

	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(r.path, "/")
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return Meta{}, fmt.Errorf("upstream %s %s: build request: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Meta{}, fmt.Errorf("upstream %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("upstream request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Meta{}, fmt.Errorf("upstream %s %s: %w", r.method, r.path, parseAPIError(resp.StatusCode, body))
	}

	if resp.StatusCode == http.StatusNoContent {
		return Meta{}, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return Meta{}, nil
		}
		return Meta{}, fmt.Errorf("upstream %s %s: decode envelope: %w", r.method, r.path, err)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return Meta{}, fmt.Errorf("upstream %s %s: decode data: %w", r.method, r.path, err)
		}
	}

	return Meta{Pagination: env.Meta.pagination(), Message: env.SuccessMessage}, nil
}
