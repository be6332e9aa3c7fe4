package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequenceModel() *WorkflowModel {
	return &WorkflowModel{
		LaunchPrompt:  PromptInfo{Src: "p1.md", Content: "first"},
		Model:         "model",
		Repository:    "repo",
		UpdatePrompts: []PromptInfo{{Src: "p2.md", Content: "second"}},
	}
}

func TestWorkflowModel_Sequence(t *testing.T) {
	wf := sequenceModel()
	require.NoError(t, wf.Validate())
	assert.False(t, wf.IsParallel())
	assert.Equal(t, WorkflowTypeSequence, wf.Type())
}

func TestWorkflowModel_ValidateSequence(t *testing.T) {
	wf := sequenceModel()
	wf.Model = ""
	assert.Error(t, wf.Validate())

	wf = sequenceModel()
	wf.LaunchPrompt.Content = ""
	err := wf.Validate()
	require.Error(t, err)
	assert.True(t, IsCategory(err, ErrCatValidation))

	var nilModel *WorkflowModel
	assert.Error(t, nilModel.Validate())
	assert.False(t, nilModel.IsParallel())
}

func TestWorkflowModel_Parallel(t *testing.T) {
	wf := &WorkflowModel{
		Model:         "model",
		Repository:    "repo",
		TimeoutMillis: 100,
		FallbackSrc:   "top.md",
		Parallel: &ParallelWorkflowData{
			ParallelPrompt: PromptInfo{Content: "split"},
			BindResultType: "list",
			Sequences:      []SequenceInfo{{Prompts: []PromptInfo{{Content: "a"}}}},
			TimeoutMillis:  500,
		},
	}
	require.NoError(t, wf.Validate())
	assert.True(t, wf.IsParallel())
	assert.Equal(t, WorkflowTypeParallel, wf.Type())
	assert.True(t, wf.Parallel.HasBindResultType())
	assert.Equal(t, int64(500), wf.Timeout())
	assert.Equal(t, "top.md", wf.Fallback())

	wf.Parallel.Sequences = nil
	assert.Error(t, wf.Validate())
}

func TestWorkflowModel_ParallelSequenceWithoutPrompts(t *testing.T) {
	wf := &WorkflowModel{
		Model:      "model",
		Repository: "repo",
		Parallel: &ParallelWorkflowData{
			Sequences: []SequenceInfo{{}},
		},
	}
	assert.Error(t, wf.Validate())

	wf.Parallel.ParallelPrompt = PromptInfo{Content: "shared"}
	assert.NoError(t, wf.Validate())
}

func TestJobDetails_Prompts(t *testing.T) {
	d := JobDetails{
		Prompts: []Prompt{
			NewPrompt("p0", "j", 0, "a.md", "a"),
			NewPrompt("p1", "j", 1, "b.md", "b"),
			NewPrompt("p2", "j", 2, "c.md", "c"),
		},
	}
	launch, ok := d.LaunchPrompt()
	require.True(t, ok)
	assert.Equal(t, "p0", launch.ID)
	updates := d.UpdatePrompts()
	require.Len(t, updates, 2)
	assert.Equal(t, "p1", updates[0].ID)

	sent := updates[0].MarkSent()
	assert.True(t, sent.IsSent())
	assert.False(t, updates[0].IsSent())
}
