package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultEnvPrefix prefixes every environment override (CHURRERA_LOG_LEVEL, ...).
	DefaultEnvPrefix = "CHURRERA"
	// ProjectConfigDir holds the project config file and the job database.
	ProjectConfigDir = ".churrera"
	// APIKeyEnv is the conventional variable holding the remote service key.
	APIKeyEnv = "CURSOR_API_KEY"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper creates a loader using an existing viper instance,
// so CLI flags bound on it take precedence.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: DefaultEnvPrefix,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (bound with viper.BindPFlag)
// 2. Environment variables (CHURRERA_*, plus CURSOR_API_KEY for api.key)
// 3. Project config (.churrera/config.yaml)
// 4. User config (~/.config/churrera/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
	if err := l.v.BindEnv("api.key", l.envPrefix+"_API_KEY", APIKeyEnv); err != nil {
		return nil, fmt.Errorf("binding api key env: %w", err)
	}

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(ProjectConfigDir)
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "churrera"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("api.base_url", "https://api.cursor.com")
	l.v.SetDefault("api.key", "")
	l.v.SetDefault("api.timeout", "30s")
	l.v.SetDefault("api.rate_limit.requests_per_second", 2.0)
	l.v.SetDefault("api.rate_limit.burst", 5)
	l.v.SetDefault("api.retry.max_attempts", 4)
	l.v.SetDefault("api.retry.initial_interval", "500ms")
	l.v.SetDefault("api.retry.max_interval", "10s")

	l.v.SetDefault("state.path", filepath.Join(ProjectConfigDir, "churrera.db"))
	l.v.SetDefault("polling.interval", "5s")
	l.v.SetDefault("workflow.cache_size", 128)
	l.v.SetDefault("serve.addr", "127.0.0.1:8089")
	l.v.SetDefault("serve.monitor.enabled", true)
	l.v.SetDefault("serve.monitor.interval", "30s")
	l.v.SetDefault("serve.monitor.goroutine_threshold", 1000)
	l.v.SetDefault("serve.monitor.memory_threshold_mb", 512)
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Set overrides a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}
