// Package health reports the readiness of the detector and serves the ops
// endpoints.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the health of one dependency.
type ComponentHealth struct {
	Name      string       `json:"name"`
	Status    SystemStatus `json:"status"`
	Upstream  string       `json:"upstream_status,omitempty"`
	ErrorRate float64      `json:"error_rate,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	ModelLoaded  bool                       `json:"model_loaded"`
	Components   map[string]ComponentHealth `json:"components"`
}
