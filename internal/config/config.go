package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	API      APIConfig      `mapstructure:"api"`
	State    StateConfig    `mapstructure:"state"`
	Polling  PollingConfig  `mapstructure:"polling"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Serve    ServeConfig    `mapstructure:"serve"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig configures the remote agent service client.
type APIConfig struct {
	BaseURL   string          `mapstructure:"base_url"`
	Key       string          `mapstructure:"key"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

// RateLimitConfig configures the client-side token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RetryConfig configures retries of transient remote failures.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// StateConfig configures job persistence.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// PollingConfig configures the sweep cadence.
type PollingConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// WorkflowConfig configures workflow parsing.
type WorkflowConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// ServeConfig configures the background scheduler and status API.
type ServeConfig struct {
	Addr    string        `mapstructure:"addr"`
	Monitor MonitorConfig `mapstructure:"monitor"`
}

// MonitorConfig configures process resource sampling during serve.
// Zero thresholds disable the matching warning.
type MonitorConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Interval           time.Duration `mapstructure:"interval"`
	GoroutineThreshold int           `mapstructure:"goroutine_threshold"`
	MemoryThresholdMB  int           `mapstructure:"memory_threshold_mb"`
}
