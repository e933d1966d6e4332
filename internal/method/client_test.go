package method

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vietddude/methodwatch/internal/core/domain"
	"github.com/vietddude/methodwatch/internal/metrics"
)

func TestClient_Invoke_PostsJSON(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"id":5}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	defer c.Close()

	out, err := c.Invoke(context.Background(), "/get_user", map[string]any{"id": 5})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/get_user" {
		t.Errorf("path = %s, want /get_user", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %s, want application/json", gotContentType)
	}

	var params map[string]any
	if err := json.Unmarshal(gotBody, &params); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if params["id"] != float64(5) {
		t.Errorf("params = %v, want id=5", params)
	}

	if out.NetworkErr() != nil {
		t.Fatalf("unexpected network failure: %v", out.NetworkErr())
	}
	if out.Status() != http.StatusOK {
		t.Errorf("status = %d, want 200", out.Status())
	}
	if string(out.Body()) != `{"id":5}` {
		t.Errorf("body = %s", out.Body())
	}
}

func TestClient_Invoke_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // Nothing is listening anymore.

	c := NewClient(url, 2*time.Second)
	defer c.Close()

	out, err := c.Invoke(context.Background(), "/get_user", map[string]any{})
	if err != nil {
		t.Fatalf("a failed exchange must be an Outcome, not an error: %v", err)
	}
	if out.NetworkErr() == nil {
		t.Fatal("expected a network failure outcome")
	}

	res := Classify[map[string]any](out)
	var ce *CallError
	if !errors.As(res.Err(), &ce) || ce.Kind != KindTransport {
		t.Errorf("expected transport error, got %v", res.Err())
	}
}

func TestClient_Invoke_UnencodableParams(t *testing.T) {
	c := NewClient("http://localhost:0", time.Second)
	defer c.Close()

	// An unexpected invocation failure propagates as an error, never as an
	// Outcome.
	_, err := c.Invoke(context.Background(), "/x", map[string]any{"ch": make(chan int)})
	if err == nil {
		t.Fatal("expected an error for unencodable params")
	}
}

func TestCall_ClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name       string
		respStatus int
		respBody   string
		wantKind   ErrorKind
	}{
		{"protocol", http.StatusBadRequest, "", KindProtocol},
		{"unauthorized", http.StatusUnauthorized, "", KindUnauthorized},
		{"server", http.StatusBadGateway, "upstream down", KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.respStatus)
				w.Write([]byte(tt.respBody))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, 5*time.Second)
			defer c.Close()

			res, err := Call[json.RawMessage](context.Background(), c, "/op", nil)
			if err != nil {
				t.Fatalf("Call failed: %v", err)
			}

			var ce *CallError
			if !errors.As(res.Err(), &ce) {
				t.Fatalf("expected *CallError, got %v", res.Err())
			}
			if ce.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", ce.Kind, tt.wantKind)
			}
		})
	}
}

func TestCall_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"height":42}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	defer c.Close()

	type stats struct {
		Height int `json:"height"`
	}
	res, err := Call[stats](context.Background(), c, "/get_stats", map[string]any{})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	val, ok := res.Value()
	if !ok {
		t.Fatalf("expected success, got %v", res.Err())
	}
	if val.Height != 42 {
		t.Errorf("height = %d, want 42", val.Height)
	}
}

func TestClient_LatencyObservedOnNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	defer c.Close()

	// A unique path gets its own histogram series, so its existence proves
	// the failed exchange was observed.
	before := testutil.CollectAndCount(metrics.CallLatency)
	out, err := c.Invoke(context.Background(), "/latency_on_failure", map[string]any{})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out.NetworkErr() == nil {
		t.Fatal("expected a network failure outcome")
	}
	if after := testutil.CollectAndCount(metrics.CallLatency); after != before+1 {
		t.Errorf("latency series count = %d, want %d", after, before+1)
	}
}

func TestCall_CountsByPathAndKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	defer c.Close()

	counter := metrics.CallsTotal.WithLabelValues("/counted_call", domain.KindServer)
	before := testutil.ToFloat64(counter)

	if _, err := Call[json.RawMessage](context.Background(), c, "/counted_call", nil); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if after := testutil.ToFloat64(counter); after != before+1 {
		t.Errorf("calls counter = %v, want %v", after, before+1)
	}
}

func TestClient_Logout(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	defer c.Close()

	resp, err := c.Logout(context.Background())
	if err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	defer resp.Body.Close()

	if gotMethod != http.MethodPost || gotPath != "/logout" {
		t.Errorf("got %s %s, want POST /logout", gotMethod, gotPath)
	}
	// Logout sits outside the classified protocol: the raw response comes
	// back untouched.
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}
