// Package apiclient is the HTTP client shared by the platform adapters.
// Every call is rate limited per platform, carries an explicit timeout and
// maps failures to typed domain errors tagged with the platform and step.
package apiclient

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

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

// DefaultTimeout applies to simple API calls.
const DefaultTimeout = 15 * time.Second

// MediaTimeout bounds media downloads, which stream for longer than API calls.
const MediaTimeout = 5 * time.Minute

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client performs platform API calls.
type Client struct {
	platform  domain.Platform
	http      *http.Client
	limiter   *RateLimiter
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// WithRateLimiter replaces the default per-platform limiter.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// New creates a client for a platform.
func New(platform domain.Platform, opts ...Option) *Client {
	c := &Client{
		platform:  platform,
		http:      &http.Client{Timeout: DefaultTimeout},
		limiter:   NewRateLimiter(platform),
		userAgent: "socialrelay/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Platform returns the platform this client talks to.
func (c *Client) Platform() domain.Platform {
	return c.platform
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Request describes one API call. At most one of Form, JSON or Body is used.
type Request struct {
	Method      string
	URL         string
	Query       url.Values
	Form        url.Values
	JSON        any
	Body        io.Reader
	ContentType string
	Bearer      string
	// BasicUser and BasicPassword send client credentials instead of a bearer token.
	BasicUser     string
	BasicPassword string
	Header        http.Header
}

// Call executes r and decodes a 2xx JSON body into out (if non-nil).
// It returns the response headers on success.
func (c *Client) Call(ctx context.Context, step string, r Request, out any) (http.Header, error) {
	req, err := c.build(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s %s: create request: %w", c.platform, step, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	logger.Debug("%s %s: %s %s", c.platform, step, req.Method, req.URL.Path)
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, c.platform, step, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := parseAPIError(resp.StatusCode, body, redact(req.URL))
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.RecordRateLimitError(retryAfter(resp.Header))
		}
		return nil, domain.NewPlatformError(classify(apiErr), c.platform, step, apiErr.Message, apiErr)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return nil, domain.NewPlatformError(domain.KindProviderUnavailable, c.platform, step,
				"unexpected response from provider", fmt.Errorf("decode response: %w", err))
		}
	}
	return resp.Header, nil
}

func (c *Client) build(ctx context.Context, r Request) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var body io.Reader
	contentType := r.ContentType
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case r.Body != nil:
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	switch {
	case r.Bearer != "":
		req.Header.Set("Authorization", "Bearer "+r.Bearer)
	case r.BasicUser != "":
		req.SetBasicAuth(r.BasicUser, r.BasicPassword)
	}
	return req, nil
}

// GetJSON issues a GET and decodes the JSON response.
func (c *Client) GetJSON(ctx context.Context, step, rawURL string, query url.Values, bearer string, out any) error {
	_, err := c.Call(ctx, step, Request{Method: http.MethodGet, URL: rawURL, Query: query, Bearer: bearer}, out)
	return err
}

// PostForm issues a form-encoded POST and decodes the JSON response.
func (c *Client) PostForm(ctx context.Context, step, rawURL string, form url.Values, bearer string, out any) error {
	if form == nil {
		form = url.Values{}
	}
	_, err := c.Call(ctx, step, Request{Method: http.MethodPost, URL: rawURL, Form: form, Bearer: bearer}, out)
	return err
}

// PostJSON issues a JSON POST and decodes the JSON response.
func (c *Client) PostJSON(ctx context.Context, step, rawURL string, body any, bearer string, out any) error {
	_, err := c.Call(ctx, step, Request{Method: http.MethodPost, URL: rawURL, JSON: body, Bearer: bearer}, out)
	return err
}

// Media is downloaded media content.
type Media struct {
	Body        io.ReadCloser
	ContentType string
	// Size is the content length, or -1 if unknown.
	Size int64
}

// FetchMedia opens a media URL for upload to platforms that do not pull
// media themselves. The caller must close Body.
func (c *Client) FetchMedia(ctx context.Context, step, rawURL string) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewPlatformError(domain.KindMediaUnreachable, c.platform, step, "invalid media URL", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	hc := &http.Client{Transport: c.http.Transport, Timeout: MediaTimeout}
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewPlatformError(domain.KindMediaUnreachable, c.platform, step,
			fmt.Sprintf("could not download %s", rawURL), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, domain.NewPlatformError(domain.KindMediaUnreachable, c.platform, step,
			fmt.Sprintf("downloading %s returned status %d", rawURL, resp.StatusCode), nil)
	}
	return &Media{Body: resp.Body, ContentType: resp.Header.Get("Content-Type"), Size: resp.ContentLength}, nil
}

// ReadMedia downloads media fully, up to limit bytes.
func (c *Client) ReadMedia(ctx context.Context, step, rawURL string, limit int64) ([]byte, string, error) {
	m, err := c.FetchMedia(ctx, step, rawURL)
	if err != nil {
		return nil, "", err
	}
	defer m.Body.Close()
	data, err := io.ReadAll(io.LimitReader(m.Body, limit+1))
	if err != nil {
		return nil, "", domain.NewPlatformError(domain.KindMediaUnreachable, c.platform, step,
			fmt.Sprintf("could not download %s", rawURL), err)
	}
	if int64(len(data)) > limit {
		return nil, "", domain.NewPlatformError(domain.KindProviderRejected, c.platform, step,
			fmt.Sprintf("media exceeds the %d byte upload limit", limit), nil)
	}
	return data, m.ContentType, nil
}

// redact strips query parameters, which may carry tokens, from logged URLs.
func redact(u *url.URL) string {
	clone := *u
	clone.RawQuery = ""
	return clone.String()
}
