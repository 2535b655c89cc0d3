// Package health runs the diagnostics behind 'apporte doctor'.
//
// Each Checker probes one dependency of a session: the token storage
// backend, the API host, or the stored token itself. A Manager runs the
// checkers in parallel under a timeout and keeps their results in the
// order the checkers were added.
//
//	manager := health.NewManager()
//	manager.AddChecker(health.NewStorageChecker(storage, nil))
//	manager.AddChecker(health.NewAPIChecker(baseURL, nil))
//
//	results := manager.Check(ctx)
//	if health.Overall(results) == health.StatusUnhealthy {
//		// ...
//	}
package health

import (
	"context"
	"time"
)

// Checker probes a single dependency.
type Checker interface {
	// Name is a short lowercase label such as "storage" or "api".
	Name() string

	// Check returns quickly and honours the context deadline.
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check.
type Status string

const (
	// StatusHealthy means the dependency works.
	StatusHealthy Status = "healthy"

	// StatusDegraded means commands still run but something needs
	// attention, such as a missing or expired session.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means commands that need the dependency will fail.
	StatusUnhealthy Status = "unhealthy"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Result is the outcome of one check.
type Result struct {
	Name    string         `json:"name"`
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency_ns"`

	// Suggestion tells the user how to fix a degraded or unhealthy result.
	Suggestion string `json:"suggestion,omitempty"`
}

// NewResult creates a result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithDetail adds a detail and returns the result for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// WithSuggestion sets the fix hint and returns the result for chaining.
func (r *Result) WithSuggestion(suggestion string) *Result {
	r.Suggestion = suggestion
	return r
}

// WithLatency sets the latency and returns the result for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

// Healthy creates a healthy result.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}
