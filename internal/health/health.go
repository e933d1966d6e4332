// Package health provides poller health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a target.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// TargetHealth contains health metrics for one watched method.
type TargetHealth struct {
	Method     string       `json:"method"`
	Status     SystemStatus `json:"status"`
	Kind       string       `json:"kind,omitempty"`
	ObservedAt time.Time    `json:"observed_at,omitempty"`
	AgeSeconds float64      `json:"age_seconds"`
}

// Report contains the full health report.
type Report struct {
	SystemStatus SystemStatus            `json:"system_status"`
	Targets      map[string]TargetHealth `json:"targets"`
}
