// Package control wires the method client, bindings and sinks into the
// methodwatch daemon.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/vietddude/methodwatch/internal/binding"
	"github.com/vietddude/methodwatch/internal/core/config"
	"github.com/vietddude/methodwatch/internal/core/domain"
	"github.com/vietddude/methodwatch/internal/core/worker"
	"github.com/vietddude/methodwatch/internal/health"
	redisclient "github.com/vietddude/methodwatch/internal/infra/redis"
	"github.com/vietddude/methodwatch/internal/infra/storage"
	"github.com/vietddude/methodwatch/internal/infra/storage/memory"
	"github.com/vietddude/methodwatch/internal/infra/storage/postgres"
	"github.com/vietddude/methodwatch/internal/method"
	"github.com/vietddude/methodwatch/internal/metrics"
)

// Config holds the daemon configuration.
type Config struct {
	Port     int
	Host     string
	Targets  []config.TargetConfig
	Redis    redisclient.Config
	Database postgres.Config

	// Retention bounds how long observations are kept. Zero keeps them
	// forever.
	Retention time.Duration

	// MigrationsDir overrides where goose looks for migrations.
	// Defaults to "migrations".
	MigrationsDir string
}

// target couples one configured method with its invoker and latency slot.
type target struct {
	cfg     config.TargetConfig
	invoker method.Invoker
	latency *atomic.Int64 // nanoseconds of the most recent attempt
}

// Poller mounts one binding per configured target and fans every published
// result out to the sinks.
type Poller struct {
	cfg          Config
	targets      []*target
	bindings     map[string]*binding.Binding[json.RawMessage]
	repo         storage.ObservationRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	healthServer *health.Server
	closers      []io.Closer
	log          *slog.Logger

	mu     sync.RWMutex
	latest map[string]*domain.Observation
}

// NewPoller creates a poller with all dependencies initialized.
func NewPoller(cfg Config) (*Poller, error) {
	log := slog.Default()

	// 1. Initialize Storage
	var repo storage.ObservationRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		migrationsDir := cfg.MigrationsDir
		if migrationsDir == "" {
			migrationsDir = "migrations"
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, migrationsDir); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		repo = postgres.NewObservationRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		repo = memory.NewObservationRepo(memory.NewMemoryStorage())
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Redis (optional fan-out)
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, fan-out disabled", "error", err)
		}
	}

	p := &Poller{
		cfg:         cfg,
		bindings:    make(map[string]*binding.Binding[json.RawMessage]),
		repo:        repo,
		db:          db,
		redisClient: redisClient,
		log:         log,
		latest:      make(map[string]*domain.Observation),
	}

	// 3. Build invokers. HTTP clients are shared per endpoint.
	httpClients := make(map[string]*method.Client)
	maxAge := make(map[string]time.Duration, len(cfg.Targets))

	for _, tc := range cfg.Targets {
		// Params must be JSON-encodable up front: the producer treats an
		// invocation-construction failure as fatal.
		if _, err := json.Marshal(tc.Params); err != nil {
			return nil, fmt.Errorf("target %q: params not JSON-encodable: %w", tc.Name, err)
		}

		endpoint := tc.Endpoint
		if endpoint == "" {
			endpoint = cfg.Host
		}
		if endpoint == "" {
			return nil, fmt.Errorf("target %q: no host or endpoint configured", tc.Name)
		}

		var inv method.Invoker
		switch tc.Transport {
		case "", "http":
			client, ok := httpClients[endpoint]
			if !ok {
				client = method.NewClient(endpoint, tc.Timeout)
				httpClients[endpoint] = client
				p.closers = append(p.closers, client)
			}
			inv = client
		case "grpc":
			grpcInv, err := method.NewGRPCInvoker(context.Background(), tc.Name, endpoint)
			if err != nil {
				return nil, fmt.Errorf("target %q: %w", tc.Name, err)
			}
			p.closers = append(p.closers, grpcInv)
			inv = grpcInv
		default:
			return nil, fmt.Errorf("target %q: unknown transport %q", tc.Name, tc.Transport)
		}

		lat := &atomic.Int64{}
		p.targets = append(p.targets, &target{cfg: tc, invoker: inv, latency: lat})

		if tc.Interval > 0 {
			maxAge[tc.Name] = 3 * tc.Interval
		}
	}

	// 4. Health Monitor over the poller's own snapshot
	monitor := health.NewMonitor(p, maxAge)
	p.healthServer = health.NewServer(monitor, cfg.Port)

	return p, nil
}

// Start mounts the bindings and background loops. Non-blocking; everything
// winds down when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	go func() {
		// ErrServerClosed is the normal return on graceful Stop.
		if err := p.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("Health server failed", "error", err)
		}
	}()

	for _, t := range p.targets {
		t := t
		b := binding.Bind(ctx, p.producer(t), binding.Options{
			Reload: t.cfg.Reload,
			Name:   t.cfg.Name,
			Logger: p.log,
		})
		p.bindings[t.cfg.Name] = b

		p.log.Info("Mounted binding", "method", t.cfg.Name, "path", t.cfg.Path,
			"interval", t.cfg.Interval, "reload", t.cfg.Reload)

		go p.observe(ctx, t, b)
		if t.cfg.Interval > 0 {
			go p.refetchLoop(ctx, t.cfg.Interval, b)
		}
	}

	go p.runMetricsUpdater(ctx)
	go worker.NewPruner(p.cfg.Retention, p.repo, p.log).Start(ctx)

	return nil
}

// Stop stops the poller.
func (p *Poller) Stop(ctx context.Context) error {
	p.log.Info("Stopping Poller...")

	for _, b := range p.bindings {
		b.Close()
	}

	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			p.log.Warn("Failed to close invoker", "error", err)
		}
	}

	if p.redisClient != nil {
		if err := p.redisClient.Close(); err != nil {
			p.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if p.db != nil {
		if err := p.db.Close(); err != nil {
			p.log.Warn("Failed to close database", "error", err)
		}
	}

	return p.healthServer.Stop(ctx)
}

// Snapshot implements health.ObservationSource.
func (p *Poller) Snapshot(ctx context.Context) map[string]*domain.Observation {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]*domain.Observation, len(p.latest))
	for m, obs := range p.latest {
		out[m] = obs
	}
	return out
}

// producer builds the zero-argument invocation for one target. Params are
// validated at construction, so an invoke error here is a programming
// error and propagates as a fatal condition rather than a typed result.
func (p *Poller) producer(t *target) binding.Producer[json.RawMessage] {
	return func(ctx context.Context) method.Result[json.RawMessage] {
		callCtx := ctx
		if t.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
			defer cancel()
		}

		start := time.Now()
		res, err := method.Call[json.RawMessage](callCtx, t.invoker, t.cfg.Path, t.cfg.Params)
		t.latency.Store(int64(time.Since(start)))
		if err != nil {
			panic(fmt.Errorf("invoke %s: %w", t.cfg.Name, err))
		}
		return res
	}
}

func (p *Poller) observe(ctx context.Context, t *target, b *binding.Binding[json.RawMessage]) {
	for res := range b.Watch(ctx) {
		obs := p.buildObservation(t, res)

		p.mu.Lock()
		p.latest[t.cfg.Name] = obs
		p.mu.Unlock()

		p.emit(ctx, obs)
	}
}

func (p *Poller) buildObservation(
	t *target,
	res method.Result[json.RawMessage],
) *domain.Observation {
	obs := &domain.Observation{
		ID:         uuid.New(),
		Method:     t.cfg.Name,
		Kind:       method.Kind(res),
		Latency:    time.Duration(t.latency.Load()),
		ObservedAt: time.Now(),
	}

	if payload, ok := res.Value(); ok {
		obs.Payload = payload
	}
	if err := res.Err(); err != nil {
		obs.Err = err.Error()
		var ce *method.CallError
		if errors.As(err, &ce) {
			obs.Status = ce.Status
		}
	}
	return obs
}

func (p *Poller) emit(ctx context.Context, obs *domain.Observation) {
	if obs.Healthy() {
		p.log.Info("Observation", "method", obs.Method, "kind", obs.Kind,
			"latency", obs.Latency)
	} else {
		p.log.Warn("Observation", "method", obs.Method, "kind", obs.Kind,
			"status", obs.Status, "error", obs.Err)
	}

	if err := p.repo.Save(ctx, obs); err != nil {
		p.log.Error("Failed to save observation", "method", obs.Method, "error", err)
	} else {
		metrics.ObservationsPersisted.WithLabelValues("storage").Inc()
	}

	if p.redisClient != nil {
		if err := p.redisClient.PublishObservation(ctx, obs); err != nil {
			p.log.Warn("Failed to publish observation", "method", obs.Method, "error", err)
		} else {
			metrics.ObservationsPersisted.WithLabelValues("redis").Inc()
		}
	}
}

func (p *Poller) refetchLoop(
	ctx context.Context,
	interval time.Duration,
	b *binding.Binding[json.RawMessage],
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Refetch()
		}
	}
}

func (p *Poller) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for methodName, obs := range p.Snapshot(ctx) {
				metrics.ObservationAge.WithLabelValues(methodName).
					Set(now.Sub(obs.ObservedAt).Seconds())
			}
		}
	}
}
