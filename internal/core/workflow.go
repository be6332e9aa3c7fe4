package core

// PromptInfo references one prompt of a workflow definition.
// Content holds the resolved prompt text.
type PromptInfo struct {
	Src     string
	Type    string
	Content string
}

// SequenceInfo describes one independent sequence of a parallel workflow.
type SequenceInfo struct {
	Model         string
	Repository    string
	Prompts       []PromptInfo
	TimeoutMillis int64
	FallbackSrc   string
}

// ParallelWorkflowData describes the fan-out part of a workflow.
type ParallelWorkflowData struct {
	ParallelPrompt PromptInfo
	BindResultType string // aggregation strategy tag, may be empty
	Sequences      []SequenceInfo
	TimeoutMillis  int64
	FallbackSrc    string
}

// HasBindResultType reports whether an aggregation strategy was declared.
func (p *ParallelWorkflowData) HasBindResultType() bool {
	return p != nil && p.BindResultType != ""
}

// WorkflowModel is the parsed, already validated workflow definition. It is
// produced by a WorkflowParser and consumed read-only by the engine.
type WorkflowModel struct {
	LaunchPrompt  PromptInfo
	Model         string
	Repository    string
	UpdatePrompts []PromptInfo
	TimeoutMillis int64
	FallbackSrc   string
	Parallel      *ParallelWorkflowData
}

// IsParallel reports whether the workflow fans out into child jobs.
func (w *WorkflowModel) IsParallel() bool {
	return w != nil && w.Parallel != nil
}

// Type returns the workflow type recorded on jobs created from the model.
func (w *WorkflowModel) Type() WorkflowType {
	if w.IsParallel() {
		return WorkflowTypeParallel
	}
	return WorkflowTypeSequence
}

// Timeout returns the effective timeout of the top-level job.
func (w *WorkflowModel) Timeout() int64 {
	if w.IsParallel() && w.Parallel.TimeoutMillis > 0 {
		return w.Parallel.TimeoutMillis
	}
	return w.TimeoutMillis
}

// Fallback returns the effective fallback reference of the top-level job.
func (w *WorkflowModel) Fallback() string {
	if w.IsParallel() && w.Parallel.FallbackSrc != "" {
		return w.Parallel.FallbackSrc
	}
	return w.FallbackSrc
}

// Validate checks what the engine needs from a parsed model.
func (w *WorkflowModel) Validate() error {
	if w == nil {
		return ErrValidation(CodeInvalidWorkflow, "workflow is empty")
	}
	if w.TimeoutMillis < 0 {
		return ErrValidation(CodeInvalidTimeout, "workflow timeout must not be negative")
	}
	if !w.IsParallel() {
		if w.Model == "" {
			return ErrValidation(CodeInvalidWorkflow, "model is required")
		}
		if w.Repository == "" {
			return ErrValidation(CodeInvalidWorkflow, "repository is required")
		}
		if w.LaunchPrompt.Content == "" {
			return ErrValidation(CodeEmptyPrompt, "launch prompt is empty")
		}
		return nil
	}

	if len(w.Parallel.Sequences) == 0 {
		return ErrValidation(CodeInvalidWorkflow, "parallel workflow declares no sequences")
	}
	for i, seq := range w.Parallel.Sequences {
		if seq.Model == "" && w.Model == "" {
			return ErrValidation(CodeInvalidWorkflow, "sequence model is required").WithDetail("sequence", i)
		}
		if seq.Repository == "" && w.Repository == "" {
			return ErrValidation(CodeInvalidWorkflow, "sequence repository is required").WithDetail("sequence", i)
		}
		if len(seq.Prompts) == 0 && w.Parallel.ParallelPrompt.Content == "" {
			return ErrValidation(CodeEmptyPrompt, "sequence has no prompts").WithDetail("sequence", i)
		}
		if seq.TimeoutMillis < 0 {
			return ErrValidation(CodeInvalidTimeout, "sequence timeout must not be negative").WithDetail("sequence", i)
		}
	}
	return nil
}
