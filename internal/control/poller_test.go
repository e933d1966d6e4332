package control

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/methodwatch/internal/core/config"
	"github.com/vietddude/methodwatch/internal/core/domain"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// logCapture records log messages so tests can assert on what was emitted.
type logCapture struct {
	mu       sync.Mutex
	messages []string
}

func (h *logCapture) Enabled(context.Context, slog.Level) bool { return true }

func (h *logCapture) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.messages = append(h.messages, r.Message)
	h.mu.Unlock()
	return nil
}

func (h *logCapture) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *logCapture) WithGroup(string) slog.Handler      { return h }

func (h *logCapture) count(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.messages {
		if m == msg {
			n++
		}
	}
	return n
}

func TestNewPoller_RejectsUnencodableParams(t *testing.T) {
	_, err := NewPoller(Config{
		Host: "http://localhost:0",
		Targets: []config.TargetConfig{{
			Name:   "bad",
			Path:   "/bad",
			Params: map[string]any{"ch": make(chan int)},
		}},
	})
	if err == nil {
		t.Fatal("expected error for unencodable params")
	}
}

func TestNewPoller_RejectsUnknownTransport(t *testing.T) {
	_, err := NewPoller(Config{
		Host: "http://localhost:0",
		Targets: []config.TargetConfig{{
			Name:      "bad",
			Path:      "/bad",
			Transport: "carrier-pigeon",
		}},
	})
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestNewPoller_RequiresEndpoint(t *testing.T) {
	_, err := NewPoller(Config{
		Targets: []config.TargetConfig{{Name: "bad", Path: "/bad"}},
	})
	if err == nil {
		t.Fatal("expected error when neither host nor endpoint is set")
	}
}

func TestPoller_ObservesAndPersists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"height":42}`))
	}))
	defer srv.Close()

	p, err := NewPoller(Config{
		Host: srv.URL,
		Targets: []config.TargetConfig{{
			Name:     "get_stats",
			Path:     "/get_stats",
			Interval: time.Minute,
			Timeout:  5 * time.Second,
		}},
	})
	if err != nil {
		t.Fatalf("NewPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return p.Snapshot(ctx)["get_stats"] != nil
	})

	obs := p.Snapshot(ctx)["get_stats"]
	if obs.Kind != domain.KindOK {
		t.Errorf("kind = %s, want %s", obs.Kind, domain.KindOK)
	}
	if string(obs.Payload) != `{"height":42}` {
		t.Errorf("payload = %s", obs.Payload)
	}

	recent, err := p.repo.Recent(ctx, "get_stats", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) == 0 {
		t.Error("observation was not persisted")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestPoller_RecordsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p, err := NewPoller(Config{
		Host: srv.URL,
		Targets: []config.TargetConfig{{
			Name:    "get_user",
			Path:    "/get_user",
			Params:  map[string]any{"id": 1},
			Timeout: 5 * time.Second,
		}},
	})
	if err != nil {
		t.Fatalf("NewPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return p.Snapshot(ctx)["get_user"] != nil
	})

	obs := p.Snapshot(ctx)["get_user"]
	if obs.Kind != domain.KindServer {
		t.Errorf("kind = %s, want %s", obs.Kind, domain.KindServer)
	}
	if obs.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", obs.Status)
	}
	if obs.Healthy() {
		t.Error("a failed observation must not report healthy")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestPoller_CleanShutdownLogsNoHealthServerError(t *testing.T) {
	capture := &logCapture{}
	prev := slog.Default()
	slog.SetDefault(slog.New(capture))
	defer slog.SetDefault(prev)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, err := NewPoller(Config{
		Host:    srv.URL,
		Targets: []config.TargetConfig{{Name: "quiet", Path: "/quiet"}},
	})
	if err != nil {
		t.Fatalf("NewPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Let the server goroutine return from ListenAndServe.
	time.Sleep(100 * time.Millisecond)
	if n := capture.count("Health server failed"); n != 0 {
		t.Errorf("clean shutdown logged %d health server failures", n)
	}
}

func TestPoller_SharesHTTPClientPerEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, err := NewPoller(Config{
		Host: srv.URL,
		Targets: []config.TargetConfig{
			{Name: "a", Path: "/a"},
			{Name: "b", Path: "/b"},
		},
	})
	if err != nil {
		t.Fatalf("NewPoller failed: %v", err)
	}

	if len(p.closers) != 1 {
		t.Errorf("closers = %d, want one shared client for one endpoint", len(p.closers))
	}
	if p.targets[0].invoker != p.targets[1].invoker {
		t.Error("targets on the same endpoint must share an invoker")
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
