package health

import (
	"testing"
	"time"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		status Status
	}{
		{"healthy", Healthy("storage readable"), StatusHealthy},
		{"degraded", Degraded("not logged in"), StatusDegraded},
		{"unhealthy", Unhealthy("api unreachable"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Status != tt.status {
				t.Errorf("Status = %v, want %v", tt.result.Status, tt.status)
			}
			if tt.result.Status.String() != tt.name {
				t.Errorf("Status.String() = %q, want %q", tt.result.Status.String(), tt.name)
			}
			if tt.result.Details == nil {
				t.Error("Details should be initialized")
			}
		})
	}
}

func TestResultChaining(t *testing.T) {
	result := Degraded("not logged in")

	returned := result.
		WithDetail("backend", "file").
		WithDetail("status_code", 200).
		WithSuggestion("Run 'apporte auth login' to sign in").
		WithLatency(50 * time.Millisecond)

	if returned != result {
		t.Error("chained calls should return the same result")
	}
	if val, ok := result.Details["backend"].(string); !ok || val != "file" {
		t.Errorf("Details[backend] = %v, want %q", result.Details["backend"], "file")
	}
	if val, ok := result.Details["status_code"].(int); !ok || val != 200 {
		t.Errorf("Details[status_code] = %v, want 200", result.Details["status_code"])
	}
	if result.Suggestion != "Run 'apporte auth login' to sign in" {
		t.Errorf("Suggestion = %q", result.Suggestion)
	}
	if result.Latency != 50*time.Millisecond {
		t.Errorf("Latency = %v, want %v", result.Latency, 50*time.Millisecond)
	}
}
