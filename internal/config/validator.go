package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration and reports every problem found.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateAPI(&cfg.API)
	v.validateState(&cfg.State)
	v.validatePolling(&cfg.Polling)
	v.validateWorkflow(&cfg.Workflow)
	v.validateServe(&cfg.Serve)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}
	switch cfg.Format {
	case "auto", "text", "json":
	default:
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateAPI(cfg *APIConfig) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		v.addError("api.base_url", cfg.BaseURL, "must be an absolute http(s) URL")
	}
	if cfg.Timeout <= 0 {
		v.addError("api.timeout", cfg.Timeout, "must be positive")
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		v.addError("api.rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond, "must be positive")
	}
	if cfg.RateLimit.Burst < 1 {
		v.addError("api.rate_limit.burst", cfg.RateLimit.Burst, "must be at least 1")
	}
	if cfg.Retry.MaxAttempts < 1 || cfg.Retry.MaxAttempts > 10 {
		v.addError("api.retry.max_attempts", cfg.Retry.MaxAttempts, "must be between 1 and 10")
	}
	if cfg.Retry.InitialInterval <= 0 {
		v.addError("api.retry.initial_interval", cfg.Retry.InitialInterval, "must be positive")
	}
	if cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		v.addError("api.retry.max_interval", cfg.Retry.MaxInterval, "must be >= api.retry.initial_interval")
	}
}

func (v *Validator) validateState(cfg *StateConfig) {
	if strings.TrimSpace(cfg.Path) == "" {
		v.addError("state.path", cfg.Path, "path required")
	}
}

func (v *Validator) validatePolling(cfg *PollingConfig) {
	if cfg.Interval < 100*time.Millisecond {
		v.addError("polling.interval", cfg.Interval, "must be at least 100ms")
	}
}

func (v *Validator) validateWorkflow(cfg *WorkflowConfig) {
	if cfg.CacheSize < 1 {
		v.addError("workflow.cache_size", cfg.CacheSize, "must be at least 1")
	}
}

func (v *Validator) validateServe(cfg *ServeConfig) {
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		v.addError("serve.addr", cfg.Addr, "must be host:port")
	}
	if !cfg.Monitor.Enabled {
		return
	}
	if cfg.Monitor.Interval < time.Second {
		v.addError("serve.monitor.interval", cfg.Monitor.Interval, "must be at least 1s")
	}
	if cfg.Monitor.GoroutineThreshold < 0 {
		v.addError("serve.monitor.goroutine_threshold", cfg.Monitor.GoroutineThreshold, "must not be negative")
	}
	if cfg.Monitor.MemoryThresholdMB < 0 {
		v.addError("serve.monitor.memory_threshold_mb", cfg.Monitor.MemoryThresholdMB, "must not be negative")
	}
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
