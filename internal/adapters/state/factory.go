package state

import (
	"path/filepath"
	"strings"

	"github.com/churrera-dev/churrera/internal/core"
)

// Repository is a JobRepository that owns resources needing release.
type Repository interface {
	core.JobRepository
	Close() error
}

// NewJobRepository opens the SQLite job repository at path.
// A path without a .db extension gets one.
func NewJobRepository(path string) (Repository, error) {
	if !strings.HasSuffix(path, ".db") {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
	}
	return NewSQLiteJobRepository(path)
}
