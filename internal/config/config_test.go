package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 4, cfg.PartitionCount)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadReadsOverridesFromEnvironment(t *testing.T) {
	t.Setenv("GRIDMATCH_REDIS_ADDR", "redis-cluster:7000")
	t.Setenv("GRIDMATCH_PARTITION_COUNT", "16")
	t.Setenv("GRIDMATCH_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis-cluster:7000", cfg.RedisAddr)
	assert.Equal(t, 16, cfg.PartitionCount)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalidPartitionCount(t *testing.T) {
	t.Setenv("GRIDMATCH_PARTITION_COUNT", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLeaseDurationConvertsFromMilliseconds(t *testing.T) {
	cfg := Config{LeaseMs: 5000}
	assert.Equal(t, "5s", cfg.LeaseDuration().String())
}
