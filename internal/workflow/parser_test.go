package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churrera-dev/churrera/internal/core"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParser_Sequence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prompt1.md", "Write the tests.")
	writeFile(t, dir, "prompts/prompt2.xml", "<task>refactor</task>")
	path := writeFile(t, dir, "workflow.yaml", `
model: claude-4-sonnet
repository: https://github.com/org/repo
timeout: 10m
fallback: fallback.md
launch: { src: prompt1.md }
updates:
  - src: prompts/prompt2.xml
  - text: "Summarize inside <result></result>."
`)

	model, err := NewParser(nil, 4).Parse(context.Background(), path)
	require.NoError(t, err)

	assert.False(t, model.IsParallel())
	assert.Equal(t, core.WorkflowTypeSequence, model.Type())
	assert.Equal(t, "claude-4-sonnet", model.Model)
	assert.Equal(t, "https://github.com/org/repo", model.Repository)
	assert.Equal(t, int64(10*time.Minute/time.Millisecond), model.TimeoutMillis)
	assert.Equal(t, "fallback.md", model.FallbackSrc)

	assert.Equal(t, core.PromptInfo{Src: "prompt1.md", Type: "md", Content: "Write the tests."}, model.LaunchPrompt)
	require.Len(t, model.UpdatePrompts, 2)
	assert.Equal(t, "xml", model.UpdatePrompts[0].Type)
	assert.Equal(t, "<task>refactor</task>", model.UpdatePrompts[0].Content)
	assert.Equal(t, "text", model.UpdatePrompts[1].Type)
	assert.Empty(t, model.UpdatePrompts[1].Src)
}

func TestParser_Parallel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "split.md", "split")
	writeFile(t, dir, "a.md", "a")
	path := writeFile(t, dir, "workflow.yaml", `
model: default-model
repository: https://github.com/org/repo
parallel:
  prompt: split.md
  bind_result_type: list
  timeout: 1500
  fallback: fb.md
  sequences:
    - model: m1
      prompts: [ a.md ]
    - repository: https://github.com/org/other
      timeout: 2s
      prompts:
        - text: inline
    - {}
`)

	model, err := NewParser(nil, 4).Parse(context.Background(), path)
	require.NoError(t, err)

	require.True(t, model.IsParallel())
	assert.Equal(t, core.WorkflowTypeParallel, model.Type())
	assert.Equal(t, int64(1500), model.Timeout())
	assert.Equal(t, "fb.md", model.Fallback())
	assert.Equal(t, "list", model.Parallel.BindResultType)
	assert.Equal(t, "split", model.Parallel.ParallelPrompt.Content)

	seqs := model.Parallel.Sequences
	require.Len(t, seqs, 3)
	assert.Equal(t, "m1", seqs[0].Model)
	assert.Equal(t, "a", seqs[0].Prompts[0].Content)
	assert.Equal(t, int64(2000), seqs[1].TimeoutMillis)
	assert.Equal(t, "inline", seqs[1].Prompts[0].Content)
	assert.Empty(t, seqs[2].Prompts)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		category core.ErrorCategory
	}{
		{"empty document", "", core.ErrCatValidation},
		{"unknown field", "model: m\nrepository: r\nlaunch: {text: x}\nretries: 3\n", core.ErrCatValidation},
		{"missing launch", "model: m\nrepository: r\n", core.ErrCatValidation},
		{"missing model", "repository: r\nlaunch: {text: x}\n", core.ErrCatValidation},
		{"missing prompt file", "model: m\nrepository: r\nlaunch: {src: nope.md}\n", core.ErrCatNotFound},
		{"src and text", "model: m\nrepository: r\nlaunch: {src: a.md, text: x}\n", core.ErrCatValidation},
		{"bad timeout", "model: m\nrepository: r\ntimeout: soon\nlaunch: {text: x}\n", core.ErrCatValidation},
		{"negative timeout", "model: m\nrepository: r\ntimeout: -5\nlaunch: {text: x}\n", core.ErrCatValidation},
		{"parallel without sequences", "model: m\nrepository: r\nparallel: {prompt: {text: x}}\n", core.ErrCatValidation},
		{"parallel with launch", "model: m\nrepository: r\nlaunch: {text: x}\nparallel: {sequences: [{prompts: [{text: y}]}]}\n", core.ErrCatValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "workflow.yaml", tt.doc)
			_, err := NewParser(nil, 4).Parse(context.Background(), path)
			require.Error(t, err)
			assert.Equal(t, tt.category, core.GetCategory(err))
		})
	}
}

func TestParser_MissingWorkflow(t *testing.T) {
	_, err := NewParser(nil, 4).Parse(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

type countingResolver struct {
	calls int
}

func (r *countingResolver) ResolvePrompt(_ context.Context, _, src string) (string, error) {
	r.calls++
	return "content of " + src, nil
}

func TestParser_Cache(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "workflow.yaml", "model: m\nrepository: r\nlaunch: a.md\n")

	resolver := &countingResolver{}
	p := NewParser(resolver, 4)

	first, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	second, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, 1, p.Len())

	// A modified file is parsed again.
	require.NoError(t, os.WriteFile(path, []byte("model: m2\nrepository: r\nlaunch: a.md\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	third, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "m2", third.Model)
	assert.Equal(t, 2, resolver.calls)

	p.Invalidate(path)
	assert.Equal(t, 0, p.Len())
}

func TestParser_CacheTracksPromptFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prompts/launch.md", "first draft")
	path := writeFile(t, dir, "workflow.yaml", "model: m\nrepository: r\nlaunch: prompts/launch.md\nupdates:\n  - {text: next}\n")
	p := NewParser(nil, 4)

	first, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "first draft", first.LaunchPrompt.Content)
	second, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// Editing only the prompt file is enough to parse again.
	writeFile(t, dir, "prompts/launch.md", "second draft, longer")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "prompts/launch.md"), future, future))

	third, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, "second draft, longer", third.LaunchPrompt.Content)

	// A deleted prompt file surfaces as an error instead of a stale model.
	require.NoError(t, os.Remove(filepath.Join(dir, "prompts/launch.md")))
	_, err = p.Parse(context.Background(), path)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestParser_CacheEviction(t *testing.T) {
	dir := t.TempDir()
	p := NewParser(&countingResolver{}, 2)
	for _, name := range []string{"a.yaml", "b.yaml", "c.yaml"} {
		path := writeFile(t, dir, name, "model: m\nrepository: r\nlaunch: {text: x}\n")
		_, err := p.Parse(context.Background(), path)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.Len())
}
