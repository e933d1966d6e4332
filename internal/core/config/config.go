package config

import (
	"time"

	redisclient "github.com/vietddude/methodwatch/internal/infra/redis"
	"github.com/vietddude/methodwatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Host      string             `yaml:"host"`
	Targets   []TargetConfig     `yaml:"targets"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
	Retention time.Duration      `yaml:"retention"` // observation retention; 0 = keep forever
}

// ServerConfig holds health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TargetConfig describes one remote method to watch.
type TargetConfig struct {
	Name      string         `yaml:"name"`
	Path      string         `yaml:"path"`
	Params    map[string]any `yaml:"params"`
	Interval  time.Duration  `yaml:"interval"`  // periodic refetch; 0 = initial invocation only
	Reload    time.Duration  `yaml:"reload"`    // retry delay after a failed result; 0 = no retry
	Timeout   time.Duration  `yaml:"timeout"`   // per-call timeout (HTTP transport)
	Transport string         `yaml:"transport"` // "http" (default) or "grpc"
	Endpoint  string         `yaml:"endpoint"`  // overrides the top-level host for this target
}
