package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/sonpython/gridmatch/internal/config"
)

func TestNewBuildsLoggerAtConfiguredLevel(t *testing.T) {
	logger, err := New(config.Config{LogLevel: "debug", LogDevelopment: true})
	require.NoError(t, err)
	defer logger.Sync()

	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.Config{LogLevel: "not-a-level"})
	assert.Error(t, err)
}

func TestNewProductionModeHonorsConfiguredLevel(t *testing.T) {
	logger, err := New(config.Config{LogLevel: "warn"})
	require.NoError(t, err)
	defer logger.Sync()

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
