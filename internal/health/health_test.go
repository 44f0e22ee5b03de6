package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
)

type stubProvider struct {
	name      string
	available bool
}

func (s *stubProvider) GetName() string { return s.name }
func (s *stubProvider) GetHealth() provider.HealthStatus {
	stats := provider.MonitorStats{Status: provider.StatusThrottled}
	return provider.HealthStatus{Available: s.available, ErrorRate: 0.25, MonitorStats: &stats}
}
func (s *stubProvider) IsAvailable() bool { return s.available }
func (s *stubProvider) Close() error      { return nil }

func TestMonitor_Healthy(t *testing.T) {
	m := NewMonitor(true, &stubProvider{name: "etherscan", available: true})
	m.AddCheck("database", func(context.Context) error { return nil })

	report := m.CheckHealth(context.Background())
	assert.Equal(t, StatusHealthy, report.SystemStatus)
	assert.True(t, report.ModelLoaded)
	require.Contains(t, report.Components, "etherscan")
	assert.Equal(t, "throttled", report.Components["etherscan"].Upstream)
	assert.Equal(t, StatusHealthy, report.Components["database"].Status)
}

func TestMonitor_DegradedDependency(t *testing.T) {
	m := NewMonitor(true, &stubProvider{name: "rarible", available: false})
	m.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	report := m.CheckHealth(context.Background())
	assert.Equal(t, StatusDegraded, report.SystemStatus)
	assert.Equal(t, StatusDegraded, report.Components["rarible"].Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Error)
}

func TestMonitor_ModelMissingIsCritical(t *testing.T) {
	report := NewMonitor(false).CheckHealth(context.Background())
	assert.Equal(t, StatusCritical, report.SystemStatus)
}

func TestMonitor_CachesReport(t *testing.T) {
	calls := 0
	m := NewMonitor(true)
	m.AddCheck("db", func(context.Context) error { calls++; return nil })

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	assert.Equal(t, 1, calls)

	m.ttl = time.Nanosecond
	time.Sleep(time.Millisecond)
	m.CheckHealth(context.Background())
	assert.Equal(t, 2, calls)
}

func TestServer_Endpoints(t *testing.T) {
	srv := NewServer(NewMonitor(true, &stubProvider{name: "etherscan", available: true}), 0)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["model_loaded"])

	metrics, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestServer_CriticalReturns503(t *testing.T) {
	srv := NewServer(NewMonitor(false), 0)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
