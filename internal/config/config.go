// Package config loads a single Config struct from the process
// environment at startup, per SPEC_FULL.md's "Config (L)" addendum. No
// package-level globals: Config is constructed once in cmd/server/main.go
// and passed by value into every component constructor, the same way the
// teacher's config.go constants fan out into main.go's setup, generalized
// from compile-time constants to a runtime-loaded struct.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full set of environment-driven knobs for the server
// process. Field names follow the GRIDMATCH_* env vars named in
// SPEC_FULL.md's Config addendum.
type Config struct {
	// RedisAddr is the address of the Redis cluster backing kv.Store,
	// pubsub.Fabric, and the matchmaking/lobby backends.
	RedisAddr string `env:"GRIDMATCH_REDIS_ADDR" envDefault:"localhost:6379"`

	// PartitionCount is N, the number of partition executors commands and
	// events are routed across via game_id % N.
	PartitionCount int `env:"GRIDMATCH_PARTITION_COUNT" envDefault:"4"`

	// LeaseMs is the TTL of every singleton lease this node contends for
	// (the matchmaking loop's and each partition executor's), per spec.md
	// section 4.E.
	LeaseMs int `env:"GRIDMATCH_LEASE_MS" envDefault:"5000"`

	// HTTPAddr is the session gateway's listen address.
	HTTPAddr string `env:"GRIDMATCH_HTTP_ADDR" envDefault:":8080"`

	// MetricsAddr is the address the /metrics handler listens on. Empty
	// disables the metrics endpoint entirely.
	MetricsAddr string `env:"GRIDMATCH_METRICS_ADDR" envDefault:":9090"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"GRIDMATCH_LOG_LEVEL" envDefault:"info"`

	// LogDevelopment switches zap's output from JSON to the human-readable
	// development console encoder.
	LogDevelopment bool `env:"GRIDMATCH_LOG_DEVELOPMENT" envDefault:"false"`

	// BotEnabled starts a headless bot driver filling empty match seats,
	// useful for local development without real players.
	BotEnabled bool `env:"GRIDMATCH_BOT_ENABLED" envDefault:"false"`
}

// LeaseDuration returns LeaseMs as a time.Duration.
func (c Config) LeaseDuration() time.Duration {
	return time.Duration(c.LeaseMs) * time.Millisecond
}

// Load parses Config from the process environment, applying the defaults
// above for anything unset.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.PartitionCount < 1 {
		return Config{}, fmt.Errorf("config: GRIDMATCH_PARTITION_COUNT must be >= 1, got %d", cfg.PartitionCount)
	}
	return cfg, nil
}
