package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "auto"},
		API: APIConfig{
			BaseURL:   "https://api.cursor.com",
			Timeout:   30 * time.Second,
			RateLimit: RateLimitConfig{RequestsPerSecond: 2, Burst: 5},
			Retry:     RetryConfig{MaxAttempts: 3, InitialInterval: time.Second, MaxInterval: 5 * time.Second},
		},
		State:    StateConfig{Path: ".churrera/churrera.db"},
		Polling:  PollingConfig{Interval: 5 * time.Second},
		Workflow: WorkflowConfig{CacheSize: 16},
		Serve: ServeConfig{
			Addr:    "127.0.0.1:8089",
			Monitor: MonitorConfig{Enabled: true, Interval: 30 * time.Second, GoroutineThreshold: 1000},
		},
	}
}

func TestValidator_Valid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidator_Fields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		field  string
		mutate func(*Config)
	}{
		{"log.level", func(c *Config) { c.Log.Level = "trace" }},
		{"log.format", func(c *Config) { c.Log.Format = "xml" }},
		{"api.base_url", func(c *Config) { c.API.BaseURL = "api.cursor.com" }},
		{"api.timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"api.rate_limit.requests_per_second", func(c *Config) { c.API.RateLimit.RequestsPerSecond = 0 }},
		{"api.rate_limit.burst", func(c *Config) { c.API.RateLimit.Burst = 0 }},
		{"api.retry.max_attempts", func(c *Config) { c.API.Retry.MaxAttempts = 11 }},
		{"api.retry.initial_interval", func(c *Config) { c.API.Retry.InitialInterval = 0 }},
		{"api.retry.max_interval", func(c *Config) { c.API.Retry.MaxInterval = time.Millisecond }},
		{"state.path", func(c *Config) { c.State.Path = " " }},
		{"polling.interval", func(c *Config) { c.Polling.Interval = time.Millisecond }},
		{"workflow.cache_size", func(c *Config) { c.Workflow.CacheSize = 0 }},
		{"serve.addr", func(c *Config) { c.Serve.Addr = "8089" }},
		{"serve.monitor.interval", func(c *Config) { c.Serve.Monitor.Interval = 0 }},
		{"serve.monitor.memory_threshold_mb", func(c *Config) { c.Serve.Monitor.MemoryThresholdMB = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidator_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Log.Level = "loud"
	cfg.State.Path = ""
	cfg.Polling.Interval = 0

	v := NewValidator()
	err := v.Validate(cfg)
	require.Error(t, err)
	assert.True(t, v.Errors().HasErrors())
	assert.Len(t, v.Errors(), 3)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "state.path")
	assert.Contains(t, err.Error(), "polling.interval")
}
