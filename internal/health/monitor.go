package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/methodwatch/internal/core/domain"
)

// ObservationSource exposes the latest settled observation per method.
type ObservationSource interface {
	Snapshot(ctx context.Context) map[string]*domain.Observation
}

// Monitor derives target health from observation freshness and result kind.
type Monitor struct {
	source ObservationSource
	maxAge map[string]time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a new health monitor. maxAge gives the staleness
// threshold per method; a method with no observation, or one older than its
// threshold, is critical.
func NewMonitor(source ObservationSource, maxAge map[string]time.Duration) *Monitor {
	return &Monitor{
		source: source,
		maxAge: maxAge,
	}
}

// CheckHealth computes the current report. Checks are rate limited to avoid
// hammering the source on busy /health endpoints.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 5*time.Second && len(m.lastReport.Targets) > 0 {
		return m.lastReport
	}

	now := time.Now()
	latest := m.source.Snapshot(ctx)

	report := Report{
		SystemStatus: StatusHealthy,
		Targets:      make(map[string]TargetHealth, len(m.maxAge)),
	}

	for methodName, maxAge := range m.maxAge {
		th := TargetHealth{Method: methodName, Status: StatusHealthy}

		obs, ok := latest[methodName]
		switch {
		case !ok:
			th.Status = StatusCritical
		default:
			age := now.Sub(obs.ObservedAt)
			th.Kind = obs.Kind
			th.ObservedAt = obs.ObservedAt
			th.AgeSeconds = age.Seconds()
			if maxAge > 0 && age > maxAge {
				th.Status = StatusCritical
			} else if !obs.Healthy() {
				th.Status = StatusDegraded
			}
		}

		report.Targets[methodName] = th

		// Worst case wins
		if th.Status == StatusCritical {
			report.SystemStatus = StatusCritical
		} else if th.Status == StatusDegraded && report.SystemStatus == StatusHealthy {
			report.SystemStatus = StatusDegraded
		}
	}

	m.lastCheck = now
	m.lastReport = report
	return report
}
