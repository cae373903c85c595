// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

// Package config loads and validates Clickforge configuration with
// layered sources: built-in defaults, an optional YAML file, and
// CLICKFORGE_-prefixed environment variables, in increasing precedence.
package config

import (
	"time"
)

// Config is the root configuration for the Clickforge server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	NATS     NATSConfig     `koanf:"nats"`
	Store    StoreConfig    `koanf:"store"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP ingest API.
type ServerConfig struct {
	Host string `koanf:"host" validate:"required"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`

	// RateLimitReqs requests per RateLimitWindow per client IP. Zero
	// disables rate limiting.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	URL string `koanf:"url" validate:"required"`

	// Embedded runs a NATS server inside this process. StoreDir holds
	// its JetStream data.
	Embedded  bool   `koanf:"embedded"`
	StoreDir  string `koanf:"store_dir"`
	MaxMemory int64  `koanf:"max_memory"`
	MaxStore  int64  `koanf:"max_store"`

	Stream        string        `koanf:"stream" validate:"required"`
	Subjects      string        `koanf:"subjects" validate:"required"`
	DurableName   string        `koanf:"durable_name" validate:"required"`
	RetentionDays int           `koanf:"retention_days" validate:"min=1"`
	MaxDeliver    int           `koanf:"max_deliver" validate:"min=1"`
	AckWait       time.Duration `koanf:"ack_wait" validate:"min=1s"`

	// BatchSize is the maximum number of records fetched and processed
	// per batch. FetchMaxWait bounds how long a fetch blocks waiting to
	// fill the batch. FetchPerSecond paces fetch attempts; zero means
	// unpaced.
	BatchSize      int           `koanf:"batch_size" validate:"min=1,max=10000"`
	FetchMaxWait   time.Duration `koanf:"fetch_max_wait" validate:"min=100ms"`
	FetchPerSecond float64       `koanf:"fetch_per_second" validate:"min=0"`
}

// StoreConfig configures the BadgerDB state store.
type StoreConfig struct {
	// Path to the BadgerDB directory. Empty runs fully in memory.
	Path string `koanf:"path"`

	GCInterval time.Duration `koanf:"gc_interval" validate:"min=1m"`

	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold" validate:"min=1"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout" validate:"min=1s"`
}

// PipelineConfig configures record processing.
type PipelineConfig struct {
	// MaxFutureSkew and MaxEventAge bound accepted event timestamps
	// relative to processing time.
	MaxFutureSkew time.Duration `koanf:"max_future_skew" validate:"min=0"`
	MaxEventAge   time.Duration `koanf:"max_event_age" validate:"min=1m"`

	SessionIdleTimeout time.Duration `koanf:"session_idle_timeout" validate:"min=1m"`
	SessionTTL         time.Duration `koanf:"session_ttl" validate:"min=1h"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with sensible defaults. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			Embedded:       true,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
			Stream:         "CLICKS",
			Subjects:       "clicks.>",
			DurableName:    "clickforge-pipeline",
			RetentionDays:  7,
			MaxDeliver:     5,
			AckWait:        30 * time.Second,
			BatchSize:      100,
			FetchMaxWait:   5 * time.Second,
			FetchPerSecond: 0,
		},
		Store: StoreConfig{
			Path:                    "/data/clickforge",
			GCInterval:              10 * time.Minute,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxFutureSkew:      5 * time.Minute,
			MaxEventAge:        24 * time.Hour,
			SessionIdleTimeout: 30 * time.Minute,
			SessionTTL:         7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
