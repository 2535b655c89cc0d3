package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/apporte/internal/session"
	"github.com/felixgeelhaar/apporte/internal/tokenstore"
)

// StorageChecker verifies the token storage backend can be read.
type StorageChecker struct {
	storage tokenstore.Storage
	openErr error
}

// NewStorageChecker checks storage. A non-nil openErr reports the backend
// as unhealthy without touching it, for backends that failed to connect.
func NewStorageChecker(storage tokenstore.Storage, openErr error) *StorageChecker {
	return &StorageChecker{storage: storage, openErr: openErr}
}

// Name returns the name of this health check.
func (c *StorageChecker) Name() string {
	return "storage"
}

// Check reads the token key from the backend.
func (c *StorageChecker) Check(ctx context.Context) *Result {
	if c.openErr != nil {
		// Coded errors append suggestion lines; keep the headline.
		msg, _, _ := strings.Cut(c.openErr.Error(), "\n")
		return Unhealthy(msg).
			WithSuggestion("Use --storage file, or fix storage.* with 'apporte config set'")
	}
	if c.storage == nil {
		return Healthy("no durable storage; the session ends with the process").
			WithDetail("backend", "none")
	}

	result := func() *Result {
		if _, _, err := c.storage.Load(ctx, tokenstore.Key); err != nil {
			return Unhealthy(fmt.Sprintf("%s storage unreadable: %v", c.storage.Name(), err)).
				WithSuggestion("Check the permissions of the credentials file, or run 'apporte auth logout' to reset it")
		}
		return Healthy(fmt.Sprintf("%s storage readable", c.storage.Name()))
	}()

	result.WithDetail("backend", c.storage.Name())
	if fs, ok := c.storage.(*tokenstore.FileStorage); ok {
		result.WithDetail("path", fs.Path())
	}
	return result
}

// APIChecker verifies the API host answers HTTP. Any response counts as
// reachable; 5xx responses are degraded.
type APIChecker struct {
	baseURL string
	client  *http.Client
}

// NewAPIChecker checks baseURL with client, or http.DefaultClient when
// client is nil.
func NewAPIChecker(baseURL string, client *http.Client) *APIChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIChecker{baseURL: baseURL, client: client}
}

// Name returns the name of this health check.
func (c *APIChecker) Name() string {
	return "api"
}

// Check sends an unauthenticated GET to the base URL.
func (c *APIChecker) Check(ctx context.Context) *Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return Unhealthy(fmt.Sprintf("invalid API URL %q: %v", c.baseURL, err)).
			WithSuggestion("Set a full URL: apporte config set api_url https://api.example.com/api/v1")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		msg := fmt.Sprintf("cannot reach %s: %v", c.baseURL, err)
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("%s did not answer in time", c.baseURL)
		}
		return Unhealthy(msg).
			WithDetail("url", c.baseURL).
			WithLatency(latency).
			WithSuggestion("Check your network and the api_url setting")
	}
	defer func() { _ = resp.Body.Close() }()

	result := Healthy(fmt.Sprintf("%s reachable", c.baseURL))
	if resp.StatusCode >= http.StatusInternalServerError {
		result = Degraded(fmt.Sprintf("%s answered %s", c.baseURL, resp.Status)).
			WithSuggestion("The API is up but failing; try again later")
	}
	return result.
		WithDetail("url", c.baseURL).
		WithDetail("status_code", resp.StatusCode).
		WithLatency(latency)
}

// SessionChecker inspects the stored token without calling the API.
type SessionChecker struct {
	storage tokenstore.Storage
	now     func() time.Time
}

// NewSessionChecker checks the token kept in storage.
func NewSessionChecker(storage tokenstore.Storage) *SessionChecker {
	return &SessionChecker{storage: storage, now: time.Now}
}

// Name returns the name of this health check.
func (c *SessionChecker) Name() string {
	return "session"
}

// Check reports a missing or expired token as degraded. Opaque tokens are
// healthy; only the API can tell whether they are still valid.
func (c *SessionChecker) Check(ctx context.Context) *Result {
	login := "Run 'apporte auth login' to sign in"

	if c.storage == nil {
		return Degraded("not logged in").WithSuggestion(login)
	}
	token, ok, err := c.storage.Load(ctx, tokenstore.Key)
	if err != nil {
		return Unhealthy(fmt.Sprintf("cannot read stored token: %v", err))
	}
	if !ok || token == "" {
		return Degraded("not logged in").WithSuggestion(login)
	}

	fp := tokenstore.Fingerprint(token)
	info, err := session.InspectToken(token)
	if err != nil {
		return Healthy("token stored").
			WithDetail("token", fp).
			WithDetail("expires", "unknown")
	}
	if info.Expired(c.now()) {
		return Degraded(fmt.Sprintf("token expired at %s", info.ExpiresAt.Local().Format(time.RFC1123))).
			WithDetail("token", fp).
			WithSuggestion(login)
	}

	result := Healthy("token stored").WithDetail("token", fp)
	if info.ExpiresAt != nil {
		result.WithDetail("expires", info.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return result
}
