package config

import "path/filepath"

// DefaultConfigPath is where `churrera init` writes the project config.
var DefaultConfigPath = filepath.Join(ProjectConfigDir, "config.yaml")

// DefaultConfigYAML is the project configuration written by `churrera init`.
// It carries no API key; that comes from CURSOR_API_KEY.
const DefaultConfigYAML = `# churrera configuration
#
# Every key can be overridden with a CHURRERA_* environment variable,
# e.g. CHURRERA_POLLING_INTERVAL=10s. The API key is read from CURSOR_API_KEY.

log:
  level: info        # debug, info, warn, error
  format: auto       # auto, text, json

api:
  base_url: https://api.cursor.com
  timeout: 30s
  rate_limit:
    requests_per_second: 2
    burst: 5
  retry:
    max_attempts: 4
    initial_interval: 500ms
    max_interval: 10s

state:
  path: .churrera/churrera.db

polling:
  interval: 5s

workflow:
  cache_size: 128

serve:
  addr: 127.0.0.1:8089
  monitor:
    enabled: true
    interval: 30s
    goroutine_threshold: 1000
    memory_threshold_mb: 512
`
