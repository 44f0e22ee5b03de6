package provider

import (
	"testing"
	"time"
)

func TestMonitorAccumulation(t *testing.T) {
	m := NewProviderMonitor()

	m.RecordRequest(100 * time.Millisecond)
	stats := m.GetStats()
	if stats.RequestsLastHour != 1 {
		t.Errorf("Expected 1 request, got %d", stats.RequestsLastHour)
	}

	for i := 0; i < 100; i++ {
		m.RecordRequest(50 * time.Millisecond)
	}

	stats = m.GetStats()
	if stats.RequestsLastHour != 101 {
		t.Errorf("Expected 101 requests, got %d", stats.RequestsLastHour)
	}
	if stats.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", stats.Status)
	}
}

func TestMonitorDegradedOnSlowResponses(t *testing.T) {
	m := NewProviderMonitor()
	for i := 0; i < 20; i++ {
		m.RecordRequest(5 * time.Second)
	}
	if got := m.CheckProviderStatus(); got != StatusDegraded {
		t.Errorf("Expected degraded, got %s", got)
	}
}

func TestMonitorThrottleExpires(t *testing.T) {
	m := NewProviderMonitor()
	m.RecordThrottle(429, "")
	if got := m.CheckProviderStatus(); got != StatusThrottled {
		t.Fatalf("Expected throttled, got %s", got)
	}
	if m.GetRetryAfter() <= 0 {
		t.Errorf("Expected positive retry-after")
	}
}
