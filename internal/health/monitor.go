package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
)

// Checker checks a dependency such as the database or Redis.
type Checker func(ctx context.Context) error

// Monitor aggregates health status from upstream providers and local
// dependencies.
type Monitor struct {
	providers   []provider.Provider
	checks      map[string]Checker
	modelLoaded bool
	ttl         time.Duration
	lastCheck   time.Time
	lastReport  HealthReport
	mu          sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(modelLoaded bool, providers ...provider.Provider) *Monitor {
	return &Monitor{
		providers:   providers,
		checks:      make(map[string]Checker),
		modelLoaded: modelLoaded,
		ttl:         10 * time.Second,
	}
}

// AddCheck registers a named dependency check. A failing check marks the
// system degraded.
func (m *Monitor) AddCheck(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
	m.lastCheck = time.Time{}
}

// CheckHealth builds a report. Results are reused for a short while so
// frequent checks do not hammer dependencies.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && time.Since(m.lastCheck) < m.ttl {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		ModelLoaded:  m.modelLoaded,
		Components:   make(map[string]ComponentHealth),
	}

	for _, p := range m.providers {
		h := p.GetHealth()
		c := ComponentHealth{
			Name:      p.GetName(),
			Status:    StatusHealthy,
			ErrorRate: h.ErrorRate,
		}
		if h.MonitorStats != nil {
			c.Upstream = h.MonitorStats.Status.String()
		}
		if !p.IsAvailable() {
			c.Status = StatusDegraded
		}
		report.Components[c.Name] = c
	}

	for name, check := range m.checks {
		c := ComponentHealth{Name: name, Status: StatusHealthy}
		if err := check(ctx); err != nil {
			c.Status = StatusDegraded
			c.Error = err.Error()
		}
		report.Components[name] = c
	}

	// Aggregate status (worst case wins)
	for _, c := range report.Components {
		if c.Status == StatusDegraded {
			report.SystemStatus = StatusDegraded
		}
	}
	if !m.modelLoaded {
		report.SystemStatus = StatusCritical
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
