package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/log"
	"github.com/felixgeelhaar/apporte/internal/tokenstore"
	"github.com/felixgeelhaar/apporte/internal/version"
)

// DefaultBaseURL is used when no API URL is configured.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// Params are query parameters. Nil values are skipped; everything else is
// formatted with fmt.Sprint.
type Params map[string]any

// Encode serializes params sorted by key, without the leading "?".
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}

	keys := make([]string, 0, len(p))
	for k, v := range p {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		values.Add(k, fmt.Sprint(p[k]))
	}
	return values.Encode()
}

// RequestOptions carries the optional parts of a request.
type RequestOptions struct {
	// Params are appended to the URL as a query string
	Params Params

	// Body is JSON-encoded when non-nil
	Body any

	// Header values override the defaults
	Header http.Header
}

// Client is the Apporte API client.
//
// Every request carries the token held by the token store. A 401 response
// clears the store and notifies the OnUnauthorized observers; the client
// itself never decides what the application does next.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *tokenstore.Store
	logger     *log.Logger
	userAgent  string
	timeout    time.Duration

	mu           sync.RWMutex
	unauthorized []func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every request. Zero leaves the transport default.
// It applies after all other options and never mutates a client passed
// with WithHTTPClient.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for baseURL backed by tokens. An empty
// baseURL selects DefaultBaseURL.
func NewClient(baseURL string, tokens *tokenstore.Store, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	// A cookie jar keeps server-set cookies across requests, the equivalent
	// of sending credentials with every call.
	jar, _ := cookiejar.New(nil)

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Jar: jar},
		tokens:     tokens,
		userAgent:  version.GetInfo().UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	if c.logger == nil {
		c.logger = log.DefaultLogger()
	}

	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tokens returns the token store the client authenticates with.
func (c *Client) Tokens() *tokenstore.Store {
	return c.tokens
}

// OnUnauthorized registers fn to run after any request is answered with
// 401, once the token has been cleared. It returns a function that
// removes the registration.
func (c *Client) OnUnauthorized(fn func()) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unauthorized = append(c.unauthorized, fn)
	idx := len(c.unauthorized) - 1

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.unauthorized[idx] = nil
	}
}

// Request performs an HTTP request against endpoint and decodes the JSON
// response into out. A nil out discards the body.
func (c *Client) Request(ctx context.Context, method, endpoint string, opts *RequestOptions, out any) error {
	if opts == nil {
		opts = &RequestOptions{}
	}

	fullURL := c.baseURL + endpoint
	if query := opts.Params.Encode(); query != "" {
		fullURL += "?" + query
	}

	var reqBody io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeAPIEncode, "failed to marshal request body", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeAPIRequest, "failed to create request", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	for k, vs := range opts.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger := c.logger.With("method", method, "path", endpoint, "request_id", requestID)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.WithError(err).DebugContext(ctx, "request failed")
		return &APIError{Message: genericErrorMessage, Cause: err}
	}
	defer resp.Body.Close()

	logger.DebugContext(ctx, "response received",
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		c.expire(ctx)
		return &APIError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
	}

	return parseResponse(resp, out)
}

// Get issues a GET with optional query params.
func (c *Client) Get(ctx context.Context, endpoint string, params Params, out any) error {
	return c.Request(ctx, http.MethodGet, endpoint, &RequestOptions{Params: params}, out)
}

// Post issues a POST. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.Request(ctx, http.MethodPost, endpoint, &RequestOptions{Body: body}, out)
}

// Put issues a PUT. A nil body sends no payload.
func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.Request(ctx, http.MethodPut, endpoint, &RequestOptions{Body: body}, out)
}

// Patch issues a PATCH. A nil body sends no payload.
func (c *Client) Patch(ctx context.Context, endpoint string, body, out any) error {
	return c.Request(ctx, http.MethodPatch, endpoint, &RequestOptions{Body: body}, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.Request(ctx, http.MethodDelete, endpoint, nil, out)
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// expire clears the token and fans the signal out to observers.
func (c *Client) expire(ctx context.Context) {
	if c.tokens != nil {
		if err := c.tokens.Clear(ctx); err != nil {
			c.logger.WithError(err).WarnContext(ctx, "failed to clear stored token after 401")
		}
	}
	c.logger.InfoContext(ctx, "session rejected by API")

	c.mu.RLock()
	observers := make([]func(), 0, len(c.unauthorized))
	for _, fn := range c.unauthorized {
		if fn != nil {
			observers = append(observers, fn)
		}
	}
	c.mu.RUnlock()

	for _, fn := range observers {
		fn()
	}
}

// parseResponse decodes a 2xx body into target or converts the response
// into an *APIError.
func parseResponse(resp *http.Response, target any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: genericErrorMessage, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}

	if target == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeAPIDecode, "failed to decode response", err)
	}

	return nil
}
