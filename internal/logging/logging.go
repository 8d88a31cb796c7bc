// Package logging builds the single *zap.Logger cmd/server/main.go
// constructs once and passes down into every component, replacing the
// teacher's log.Printf calls with structured fields everywhere, per
// SPEC_FULL.md's Logging addendum. Grounded on the injected-*zap.Logger
// field pattern other_examples/MOHCentral-opm-stats-api's worker pool
// uses (Logger *zap.Logger on the pool struct, passed in rather than
// pulled from a global).
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sonpython/gridmatch/internal/config"
)

// New builds a *zap.Logger from cfg.LogLevel/LogDevelopment. Production
// mode emits JSON to stderr; development mode emits a
// human-readable console encoding, for local runs and cmd/server's
// GRIDMATCH_LOG_DEVELOPMENT=true path.
func New(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}
	return logger, nil
}
