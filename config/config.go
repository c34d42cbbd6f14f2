// Package config loads service configuration from config.yaml, environment
// variables (LOGWARD_ prefix), and built-in defaults, in that order of
// increasing precedence for env vars over file values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"logward/core"
)

// Config holds all configuration for the logward service.
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	SQLite struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sqlite"`

	ClickHouse struct {
		Addr        string `mapstructure:"addr"`
		Database    string `mapstructure:"database"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
		TLS         bool   `mapstructure:"tls"`
		MaxPoolSize int    `mapstructure:"max_pool_size"`
	} `mapstructure:"clickhouse"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		QueueKey string `mapstructure:"queue_key"`
	} `mapstructure:"redis"`

	Engine struct {
		CacheSize     int  `mapstructure:"cache_size"`
		BatchWorkers  int  `mapstructure:"batch_workers"`
		QueueSize     int  `mapstructure:"queue_size"`
		CaseSensitive bool `mapstructure:"case_sensitive"`
	} `mapstructure:"engine"`

	Scheduler struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"scheduler"`

	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	} `mapstructure:"metrics"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

func setDefaults() {
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("sqlite.path", "") // empty = derive from data_dir

	viper.SetDefault("clickhouse.addr", "localhost:9000")
	viper.SetDefault("clickhouse.database", "logward")
	viper.SetDefault("clickhouse.username", "default")
	viper.SetDefault("clickhouse.password", "")
	viper.SetDefault("clickhouse.tls", false)
	viper.SetDefault("clickhouse.max_pool_size", 10)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.queue_key", "logward:notification_jobs")

	viper.SetDefault("engine.cache_size", 1024)
	viper.SetDefault("engine.batch_workers", 4)
	viper.SetDefault("engine.queue_size", 64)
	viper.SetDefault("engine.case_sensitive", false)

	viper.SetDefault("scheduler.interval", 60*time.Second)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.addr", ":9090")

	viper.SetDefault("logging.level", "info")
}

func loadFromEnv() {
	viper.SetEnvPrefix("LOGWARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// LoadConfig reads config.yaml from the working directory or ./config,
// falling back to defaults and environment variables when absent.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, defaults and env vars apply.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.resolvePaths()

	return &config, nil
}

// Validate rejects configurations the service cannot safely run with.
func (c *Config) Validate() error {
	if c.ClickHouse.Addr == "" {
		return fmt.Errorf("clickhouse.addr must not be empty")
	}
	if c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database must not be empty")
	}
	if c.ClickHouse.MaxPoolSize <= 0 {
		return fmt.Errorf("clickhouse.max_pool_size must be positive, got %d", c.ClickHouse.MaxPoolSize)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must not be empty")
	}
	if c.Engine.CacheSize <= 0 {
		return fmt.Errorf("engine.cache_size must be positive, got %d", c.Engine.CacheSize)
	}
	if c.Engine.BatchWorkers <= 0 {
		return fmt.Errorf("engine.batch_workers must be positive, got %d", c.Engine.BatchWorkers)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	if !core.ValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a recognized level", c.Logging.Level)
	}
	return nil
}

func (c *Config) resolvePaths() {
	if c.SQLite.Path == "" {
		c.SQLite.Path = c.DataDir + "/logward.db"
	}
}
