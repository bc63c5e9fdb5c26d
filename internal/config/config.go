// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/fleetledger/internal/domain/model"
)

// Fleet modes. The two operation sets are mutually exclusive.
const (
	FleetModeTrip   = string(model.FleetTrip)
	FleetModeRental = string(model.FleetRental)
)

// Storage backends for the durable key-value store.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// FleetMode is "trip" or "rental". "taxi" is accepted as an alias of "trip".
	FleetMode string `koanf:"fleet_mode"`

	// Timezone names the IANA location used for calendar days and midnight.
	Timezone string `koanf:"timezone"`

	// TrackingEnabled starts the ledger recording (true) or paused (false).
	TrackingEnabled bool `koanf:"tracking_enabled"`

	// SimulationEnabled allows synthetic earnings. Never enable against real data.
	SimulationEnabled bool `koanf:"simulation_enabled"`

	// SimulationIntervalSec is how often the simulator runs when enabled.
	SimulationIntervalSec int `koanf:"simulation_interval_sec"`

	// SimulationSeed seeds the simulator's random source.
	SimulationSeed int64 `koanf:"simulation_seed"`

	// ReconcileIntervalSec runs the ledger/snapshot reconciliation periodically; 0 disables it.
	ReconcileIntervalSec int `koanf:"reconcile_interval_sec"`

	// StoreBackend selects memory, file or postgres.
	StoreBackend string `koanf:"store_backend"`

	// StoreDir is the directory used by the file backend.
	StoreDir string `koanf:"store_dir"`

	// PostgresDSN is the connection string used by the postgres backend.
	PostgresDSN string `koanf:"postgres_dsn"`

	// PostgresTable names the key-value table.
	PostgresTable string `koanf:"postgres_table"`

	// NotificationQueueSize bounds the in-memory notification queue.
	NotificationQueueSize int `koanf:"notification_queue_size"`

	// NotificationWorkers sets the number of notification delivery workers.
	NotificationWorkers int `koanf:"notification_workers"`

	// KafkaBrokers is a comma-separated broker list; empty logs notifications instead.
	KafkaBrokers string `koanf:"kafka_brokers"`

	// KafkaTopic receives notification messages.
	KafkaTopic string `koanf:"kafka_topic"`

	// S3Bucket enables daily archive segments when set.
	S3Bucket string `koanf:"s3_bucket"`

	// S3Prefix is prepended to archive object keys.
	S3Prefix string `koanf:"s3_prefix"`

	// SeedFile is an optional JSON array of drivers upserted at start.
	SeedFile string `koanf:"seed_file"`

	// CORSOrigins is a comma-separated list of allowed origins for the HTTP API.
	CORSOrigins string `koanf:"cors_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		FleetMode:             FleetModeTrip,
		Timezone:              "Local",
		TrackingEnabled:       true,
		SimulationEnabled:     false,
		SimulationIntervalSec: 60,
		SimulationSeed:        42,
		ReconcileIntervalSec:  0,
		StoreBackend:          StoreFile,
		StoreDir:              "data",
		PostgresTable:         "ledger_kv",
		NotificationQueueSize: 10_000,
		NotificationWorkers:   2,
		KafkaTopic:            "fleet.notifications",
		S3Prefix:              "fleet",
		CORSOrigins:           "*",
	}
}

// Validate normalizes aliases and checks field combinations.
func (c *Config) Validate() error {
	mode, err := model.ParseFleetMode(c.FleetMode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.FleetMode = string(mode)

	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreFile:
		if c.StoreDir == "" {
			return fmt.Errorf("%w: store_dir required for file backend", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn required for postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}

	if c.NotificationQueueSize <= 0 || c.NotificationWorkers <= 0 {
		return fmt.Errorf("%w: notification queue size and workers must be positive", ErrInvalidConfig)
	}
	if c.SimulationEnabled && c.SimulationIntervalSec <= 0 {
		return fmt.Errorf("%w: simulation_interval_sec must be positive", ErrInvalidConfig)
	}
	if c.ReconcileIntervalSec < 0 {
		return fmt.Errorf("%w: reconcile_interval_sec must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Mode returns the validated fleet mode.
func (c *Config) Mode() model.FleetMode {
	m, err := model.ParseFleetMode(c.FleetMode)
	if err != nil {
		return model.FleetTrip
	}
	return m
}

// Location resolves Timezone. "Local" and "" map to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Brokers splits KafkaBrokers into a list.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// Origins splits CORSOrigins into a list.
func (c *Config) Origins() []string {
	return splitList(c.CORSOrigins)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
