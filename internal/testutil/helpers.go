package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/churrera-dev/churrera/internal/core"
)

// ErrTest is a generic test error.
var ErrTest = errors.New("test error")

// TempDir creates a temporary directory for tests.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "churrera-test-*")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempFile creates a temporary file with content.
func TempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

// JobOption customizes a job built by NewTestJob.
type JobOption func(*core.Job)

// NewTestJob builds a valid pending job. Options run in order.
func NewTestJob(id string, opts ...JobOption) core.Job {
	job := core.NewJob(id, "/workflows/"+id+".yaml", "claude-4-sonnet", "https://github.com/acme/app")
	for _, opt := range opts {
		opt(&job)
	}
	return job
}

// Launched binds the job to a remote agent in the given status.
func Launched(agentID string, status core.AgentState) JobOption {
	return func(j *core.Job) {
		j.AgentID = agentID
		j.Status = status
	}
}

// ChildOf links the job to a parent.
func ChildOf(parentID string) JobOption {
	return func(j *core.Job) { j.ParentJobID = parentID }
}

// OfType sets the workflow type.
func OfType(t core.WorkflowType) JobOption {
	return func(j *core.Job) { j.Type = t }
}

// WithTimeout configures a timeout and the instant the workflow started.
func WithTimeout(ms int64, started time.Time) JobOption {
	return func(j *core.Job) {
		j.TimeoutMillis = ms
		j.WorkflowStartTime = started
	}
}

// WithFallback configures a fallback prompt reference.
func WithFallback(src string) JobOption {
	return func(j *core.Job) { j.FallbackSrc = src }
}

// CreatedAt overrides the creation time.
func CreatedAt(t time.Time) JobOption {
	return func(j *core.Job) {
		j.CreatedAt = t
		if j.LastUpdate.Before(t) {
			j.LastUpdate = t
		}
	}
}
