package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/churrera-dev/churrera/internal/adapters/cursor"
	"github.com/churrera-dev/churrera/internal/adapters/state"
	"github.com/churrera-dev/churrera/internal/config"
	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
	"github.com/churrera-dev/churrera/internal/logging"
	"github.com/churrera-dev/churrera/internal/service/jobs"
	"github.com/churrera-dev/churrera/internal/workflow"
)

// app holds the process-wide dependencies of a command.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	repo     state.Repository
	client   core.AgentClient
	bus      *events.EventBus
	registry *prometheus.Registry
	engine   *jobs.Engine
}

// loadConfig loads and validates configuration using the global viper, so
// bound flags take precedence.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if cfg.API.Key != "" {
		logger.RedactSecret(cfg.API.Key)
	}
	return logger
}

// newApp wires configuration, logging, persistence, the remote client and
// the engine. needRemote makes a missing API key an error; otherwise the
// remote client is left nil.
func newApp(needRemote bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	if dir := filepath.Dir(cfg.State.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	repo, err := state.NewJobRepository(cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("opening job database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		bus:      events.New(256),
		registry: prometheus.NewRegistry(),
	}

	client, err := cursor.New(cursor.Config{
		BaseURL:           cfg.API.BaseURL,
		APIKey:            cfg.API.Key,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RateLimit.RequestsPerSecond,
		Burst:             cfg.API.RateLimit.Burst,
		MaxAttempts:       cfg.API.Retry.MaxAttempts,
		InitialInterval:   cfg.API.Retry.InitialInterval,
		MaxInterval:       cfg.API.Retry.MaxInterval,
	}, cursor.WithLogger(logger.Slog()))
	switch {
	case err == nil:
		a.client = client
	case needRemote:
		a.close()
		return nil, err
	}

	resolver := workflow.FileResolver{}
	a.engine = jobs.NewEngine(repo, a.client, workflow.NewParser(resolver, cfg.Workflow.CacheSize), resolver, jobs.EngineConfig{
		Options: jobs.Options{
			Logger:  logger.Slog(),
			Events:  a.bus,
			Metrics: jobs.MustNewMetrics(a.registry),
		},
		PollingInterval: cfg.Polling.Interval,
	})
	return a, nil
}

func (a *app) close() {
	a.bus.Close()
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("closing job database", "error", err)
	}
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// isNotFound reports whether err means a missing job.
func isNotFound(err error) bool {
	var domErr *core.DomainError
	return errors.As(err, &domErr) && domErr.Category == core.ErrCatNotFound
}
