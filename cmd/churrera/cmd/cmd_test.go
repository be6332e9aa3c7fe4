package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churrera-dev/churrera/internal/config"
	"github.com/churrera-dev/churrera/internal/core"
)

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "serve", "jobs", "models", "repositories", "init", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	sub := map[string]bool{}
	for _, c := range jobsCmd.Commands() {
		sub[c.Name()] = true
	}
	assert.Equal(t, map[string]bool{"list": true, "status": true, "logs": true, "delete": true}, sub)
}

func TestRunRequiresWorkflowFlag(t *testing.T) {
	flag := runCmd.Flags().Lookup("workflow")
	require.NotNil(t, flag)
	assert.Equal(t, "w", flag.Shorthand)
	assert.Contains(t, flag.Annotations, "cobra_annotation_bash_completion_one_required_flag")
}

func TestVersionOutput(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, buf.String(), "churrera 1.2.3")
	assert.Contains(t, buf.String(), "abc123")
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	var buf bytes.Buffer
	initCmd.SetOut(&buf)
	initForce = false
	require.NoError(t, runInit(initCmd, nil))

	_, err := os.Stat(filepath.Join(dir, config.DefaultConfigPath))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), config.APIKeyEnv)

	err = runInit(initCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	initForce = true
	defer func() { initForce = false }()
	assert.NoError(t, runInit(initCmd, nil))
}

func TestExitError(t *testing.T) {
	err := ExitError{Code: 2}
	assert.Equal(t, "exit status 2", err.Error())
}

func TestPrintJobTable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job := core.NewJob("job-1", "/wf/a.yaml", "gpt-5", "https://github.com/acme/app").WithAgentID("agent-1").WithStatus(core.AgentStateRunning)
	job.LastUpdate = now.Add(-90 * time.Second)

	var buf bytes.Buffer
	printJobTable(&buf, []core.Job{job}, now)
	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "agent-1")
	assert.Contains(t, out, "1m30s ago")

	buf.Reset()
	printJobTable(&buf, nil, now)
	assert.Equal(t, "No jobs.\n", buf.String())
}
