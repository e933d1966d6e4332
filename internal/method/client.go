package method

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/vietddude/methodwatch/internal/metrics"
)

// Invoker turns one named remote method call into a raw transport outcome.
// The error return carries only unexpected invocation failures (params that
// cannot be encoded, a request that cannot be constructed); a failed
// exchange is an Outcome, not an error.
type Invoker interface {
	Invoke(ctx context.Context, path string, params any) (Outcome, error)
}

// Client issues method calls to one host over HTTP POST. Session cookies
// are carried transparently by the jar; no other auth handling lives here.
type Client struct {
	host string
	hc   *http.Client
}

// NewClient creates a client for the given base host address.
func NewClient(host string, timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		host: host,
		hc: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Invoke performs exactly one POST {host}{path} exchange with a
// JSON-encoded parameter object. The path is appended to the host verbatim.
// No retries happen at this layer; retry policy lives in the binding.
func (c *Client) Invoke(ctx context.Context, path string, params any) (Outcome, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return Outcome{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Every attempted exchange gets a latency sample, failed ones included.
	start := time.Now()
	defer func() {
		metrics.CallLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.hc.Do(req)
	if err != nil {
		return NetworkFailure(err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// The exchange broke mid-flight; no complete response exists.
		return NetworkFailure(fmt.Errorf("read response: %w", err)), nil
	}

	return Response(resp.StatusCode, body), nil
}

// Logout terminates the server session with a fire-and-forget
// POST {host}/logout. The raw response is returned untouched; logout sits
// outside the classified result protocol and the caller owns the body.
func (c *Client) Logout(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/logout", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.hc.Do(req)
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

// Call invokes path with params on inv and classifies the outcome as T.
// The returned error is reserved for unexpected invocation failures, which
// must propagate to the caller rather than be folded into the result.
func Call[T any](ctx context.Context, inv Invoker, path string, params any) (Result[T], error) {
	out, err := inv.Invoke(ctx, path, params)
	if err != nil {
		return Result[T]{}, err
	}
	res := Classify[T](out)
	metrics.CallsTotal.WithLabelValues(path, Kind(res)).Inc()
	return res, nil
}
