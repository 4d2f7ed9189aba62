// Package config provides the configuration for quack.
//
// A single Config structure drives every component:
//   - DataDir: where engine database files live (one <database_id>.duckdb per host database)
//   - AccessMethod: the storage method name that tags engine-owned tables
//   - Engine: engine instance settings applied when a database file is opened
//   - Logging: zap logger settings
//   - Observability: Prometheus metrics and OpenTelemetry tracing
//   - Host: how to reach a PostgreSQL host when running against a live server
//
// Example usage:
//
//	cfg := config.NewDefaultConfig()
//	cfg.DataDir = "/var/lib/quack"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"

	"github.com/ajitpratap0/quack/pkg/logger"
)

const (
	// DefaultDataDir is where engine files are stored unless configured otherwise.
	DefaultDataDir = "/opt/quack/"
	// DefaultAccessMethod is the storage method name that routes tables to the engine.
	DefaultAccessMethod = "quack"
)

// Config is the single configuration structure used across quack.
type Config struct {
	// DataDir holds one engine database file per host database
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// AccessMethod is the table storage method name handled by quack
	AccessMethod string `yaml:"access_method" json:"access_method"`

	// Engine settings applied when opening a database file
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Logging configures the global zap logger
	Logging logger.Config `yaml:"logging" json:"logging"`

	// Observability settings for metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Host describes the PostgreSQL host, when one is used
	Host HostConfig `yaml:"host" json:"host"`
}

// EngineConfig contains settings for the embedded columnar engine.
type EngineConfig struct {
	// Threads caps the engine worker threads (0 = engine default)
	Threads int `yaml:"threads" json:"threads"`
	// MemoryLimit is passed through verbatim, e.g. "1GB" (empty = engine default)
	MemoryLimit string `yaml:"memory_limit" json:"memory_limit"`
	// PreserveInsertOrderOnWrite keeps insertion order for write sessions.
	// Writes default to unordered batch appends; reads always preserve order.
	PreserveInsertOrderOnWrite bool `yaml:"preserve_insert_order_on_write" json:"preserve_insert_order_on_write"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates Prometheus collectors
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsAddr is the listen address for the metrics endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing activates OpenTelemetry tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
	// ServiceName labels exported spans
	ServiceName string `yaml:"service_name" json:"service_name"`
}

// HostConfig contains connection settings for a PostgreSQL host.
type HostConfig struct {
	// ConnectionString is a libpq-style URL or DSN (use ${ENV} substitution for secrets)
	ConnectionString string `yaml:"connection_string" json:"connection_string"`
	// MaxConns caps the catalog connection pool
	MaxConns int32 `yaml:"max_conns" json:"max_conns"`
}

// NewDefaultConfig creates a Config with the defaults quack ships with.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:      DefaultDataDir,
		AccessMethod: DefaultAccessMethod,
		Engine: EngineConfig{
			Threads:                    runtime.NumCPU(),
			PreserveInsertOrderOnWrite: false,
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			MetricsAddr:       ":9187",
			EnableTracing:     false,
			TracingSampleRate: 0.1,
			ServiceName:       "quack",
		},
		Host: HostConfig{
			MaxConns: 4,
		},
	}
}

// Validate checks the configuration for correctness. It does not touch the
// filesystem; CheckDataDirectory does.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.AccessMethod == "" {
		return fmt.Errorf("access_method is required")
	}
	if c.Engine.Threads < 0 {
		return fmt.Errorf("engine.threads cannot be negative")
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return fmt.Errorf("observability.tracing_sample_rate must be within [0, 1]")
	}
	if c.Host.MaxConns < 0 {
		return fmt.Errorf("host.max_conns cannot be negative")
	}
	return nil
}
