// Package provider implements the HTTP transport shared by the upstream APIs.
//
// This package contains:
//   - Provider interface: core abstraction for an upstream endpoint
//   - HTTPProvider: REST over HTTP with status classification
//   - ProviderMonitor: latency and throttle tracking
package provider

import (
	"errors"
	"fmt"
	"time"
)

// Provider defines the core interface for an upstream API endpoint.
type Provider interface {
	// GetName returns provider identifier (e.g., "etherscan", "rarible")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// IsAvailable checks if the provider is healthy enough to use
	IsAvailable() bool

	// Close cleans up resources
	Close() error
}

// Metrics records the outcome of every upstream call.
type Metrics interface {
	Observe(api, operation string, err error, started time.Time)
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool
	Latency       time.Duration
	ErrorRate     float64
	LastSuccessAt time.Time
	LastFailureAt time.Time
	MonitorStats  *MonitorStats `json:"monitor_stats,omitempty"`
}

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("http %d: %s", e.Code, body)
}

// StatusCode extracts the HTTP status from err, or 0 if err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
