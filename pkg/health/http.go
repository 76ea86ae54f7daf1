package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ServerChecker probes a Lockbook sync server's base URL. Any response at
// all, even a 404, means the server is up; only a transport-level failure
// (connection refused, DNS failure, timeout) counts as unreachable.
type ServerChecker struct {
	// URL is the server's base URL.
	URL string

	// Method is the HTTP method to use (default: GET).
	Method string

	// Client is the HTTP client to use (allows custom configuration).
	Client *http.Client
}

// NewServerChecker creates a checker against a server's base URL.
func NewServerChecker(url string) *ServerChecker {
	return &ServerChecker{
		URL:    url,
		Method: "GET",
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Check performs the reachability probe.
func (h *ServerChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// WithTimeout sets the HTTP client timeout.
func (h *ServerChecker) WithTimeout(timeout time.Duration) *ServerChecker {
	h.Client.Timeout = timeout
	return h
}

// Ping is a one-shot convenience wrapper used by pkg/sync as a pre-flight
// before a full round trip.
func Ping(ctx context.Context, url string) error {
	result := NewServerChecker(url).Check(ctx)
	if !result.Healthy {
		return fmt.Errorf("server unreachable: %s", result.Message)
	}
	return nil
}
