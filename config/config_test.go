package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "localhost:9000", cfg.ClickHouse.Addr)
	assert.Equal(t, "logward", cfg.ClickHouse.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "logward:notification_jobs", cfg.Redis.QueueKey)
	assert.Equal(t, 1024, cfg.Engine.CacheSize)
	assert.Equal(t, 4, cfg.Engine.BatchWorkers)
	assert.False(t, cfg.Engine.CaseSensitive)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.Interval)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_DerivesSQLitePath(t *testing.T) {
	cfg := loadDefaults(t)
	assert.Equal(t, "./data/logward.db", cfg.SQLite.Path)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("LOGWARD_CLICKHOUSE_ADDR", "ch.internal:9000")
	t.Setenv("LOGWARD_SCHEDULER_INTERVAL", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ch.internal:9000", cfg.ClickHouse.Addr)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
}

func TestValidate(t *testing.T) {
	base := loadDefaults(t)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty clickhouse addr", func(c *Config) { c.ClickHouse.Addr = "" }},
		{"empty clickhouse database", func(c *Config) { c.ClickHouse.Database = "" }},
		{"zero pool size", func(c *Config) { c.ClickHouse.MaxPoolSize = 0 }},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"zero cache size", func(c *Config) { c.Engine.CacheSize = 0 }},
		{"zero batch workers", func(c *Config) { c.Engine.BatchWorkers = 0 }},
		{"negative interval", func(c *Config) { c.Scheduler.Interval = -time.Second }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base.Validate())
}
