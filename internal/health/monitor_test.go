package health

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/methodwatch/internal/core/domain"
)

type staticSource map[string]*domain.Observation

func (s staticSource) Snapshot(ctx context.Context) map[string]*domain.Observation {
	return s
}

func obsAt(kind string, age time.Duration) *domain.Observation {
	return &domain.Observation{
		Method:     "get_user",
		Kind:       kind,
		ObservedAt: time.Now().Add(-age),
	}
}

func TestMonitor_CheckHealth(t *testing.T) {
	maxAge := map[string]time.Duration{"get_user": time.Minute}

	tests := []struct {
		name       string
		source     staticSource
		wantSystem SystemStatus
		wantTarget SystemStatus
	}{
		{
			name:       "fresh healthy observation",
			source:     staticSource{"get_user": obsAt(domain.KindOK, time.Second)},
			wantSystem: StatusHealthy,
			wantTarget: StatusHealthy,
		},
		{
			name:       "fresh failing observation",
			source:     staticSource{"get_user": obsAt(domain.KindServer, time.Second)},
			wantSystem: StatusDegraded,
			wantTarget: StatusDegraded,
		},
		{
			name:       "stale observation",
			source:     staticSource{"get_user": obsAt(domain.KindOK, 2 * time.Minute)},
			wantSystem: StatusCritical,
			wantTarget: StatusCritical,
		},
		{
			name:       "no observation yet",
			source:     staticSource{},
			wantSystem: StatusCritical,
			wantTarget: StatusCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.source, maxAge)
			report := m.CheckHealth(context.Background())

			if report.SystemStatus != tt.wantSystem {
				t.Errorf("system = %s, want %s", report.SystemStatus, tt.wantSystem)
			}
			th, ok := report.Targets["get_user"]
			if !ok {
				t.Fatal("missing target entry")
			}
			if th.Status != tt.wantTarget {
				t.Errorf("target = %s, want %s", th.Status, tt.wantTarget)
			}
		})
	}
}

func TestMonitor_WorstCaseWins(t *testing.T) {
	maxAge := map[string]time.Duration{
		"get_user":  time.Minute,
		"get_stats": time.Minute,
	}
	source := staticSource{
		"get_user":  obsAt(domain.KindOK, time.Second),
		"get_stats": nil,
	}
	source["get_stats"] = &domain.Observation{
		Method:     "get_stats",
		Kind:       domain.KindTransport,
		ObservedAt: time.Now(),
	}

	m := NewMonitor(source, maxAge)
	report := m.CheckHealth(context.Background())

	if report.SystemStatus != StatusDegraded {
		t.Errorf("system = %s, want degraded", report.SystemStatus)
	}
	if report.Targets["get_user"].Status != StatusHealthy {
		t.Error("healthy target must stay healthy in a degraded system")
	}
}

func TestMonitor_RateLimitsChecks(t *testing.T) {
	source := staticSource{"get_user": obsAt(domain.KindOK, time.Second)}
	m := NewMonitor(source, map[string]time.Duration{"get_user": time.Minute})

	first := m.CheckHealth(context.Background())

	// Flip the underlying observation; within the rate-limit window the
	// cached report is served.
	source["get_user"] = obsAt(domain.KindServer, time.Second)
	second := m.CheckHealth(context.Background())

	if first.SystemStatus != second.SystemStatus {
		t.Errorf("report changed within rate-limit window: %s -> %s",
			first.SystemStatus, second.SystemStatus)
	}
}
