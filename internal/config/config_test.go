package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_SERVICE", "paysettle-test")
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_LOCK_TTL", "45s")
	t.Setenv("DATABASE_MIGRATE_ON_START", "off")

	cfg := Load()

	assert.Equal(t, "paysettle-test", cfg.AppName)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 45*time.Second, cfg.Redis.LockTTL)
	assert.False(t, cfg.MigrateOnStart)
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_LOCK_TTL", "soon")
	t.Setenv("SNOWFLAKE_NODE", "x")

	cfg := Load()

	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 3*time.Minute, cfg.Redis.LockTTL)
	assert.Equal(t, int64(1), cfg.SnowflakeNode)
}

func TestRuntimeConfigHolderDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewRuntimeConfigHolder()
	require.NoError(t, err)

	assert.Equal(t, DefaultRuntimeConfig(), holder.Get())
}

func TestRuntimeConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`healing:
  enabled: false
  interval: 30s
  initialDelay: 0s
  minAge: 2m
  batchSize: 10
reconciliation:
  autoEnabled: true
  interval: 15m
  lookback: 6h
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "healing.yml"), content, 0o600))
	t.Chdir(dir)

	holder, err := NewRuntimeConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.False(t, cfg.Healing.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Healing.Interval)
	assert.Equal(t, time.Duration(0), cfg.Healing.InitialDelay)
	assert.Equal(t, 2*time.Minute, cfg.Healing.MinAge)
	assert.Equal(t, 10, cfg.Healing.BatchSize)
	assert.True(t, cfg.Reconciliation.AutoEnabled)
	assert.Equal(t, 15*time.Minute, cfg.Reconciliation.Interval)
	assert.Equal(t, 6*time.Hour, cfg.Reconciliation.Lookback)
}

func TestRuntimeConfigHolderSetRejectsInvalid(t *testing.T) {
	holder := NewStaticRuntimeConfigHolder(DefaultRuntimeConfig())

	bad := DefaultRuntimeConfig()
	bad.Healing.BatchSize = 0
	assert.Error(t, holder.Set(bad))
	assert.Equal(t, 25, holder.Get().Healing.BatchSize)

	good := DefaultRuntimeConfig()
	good.Healing.BatchSize = 5
	require.NoError(t, holder.Set(good))
	assert.Equal(t, 5, holder.Get().Healing.BatchSize)
}
