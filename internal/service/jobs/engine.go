package jobs

import (
	"time"

	"github.com/churrera-dev/churrera/internal/core"
)

// EngineConfig configures NewEngine.
type EngineConfig struct {
	Options
	PollingInterval time.Duration
}

// Engine bundles the wired job services.
type Engine struct {
	Launcher  *AgentLauncher
	Prompts   *PromptProcessor
	Fallback  *FallbackExecutor
	Results   *ResultExtractor
	Sequence  *SequenceWorkflowHandler
	Parallel  *ParallelWorkflowHandler
	Child     *ChildWorkflowHandler
	Processor *JobProcessor
	Checker   *CompletionChecker
	Polling   *JobPollingService
	Scheduler *Scheduler
	Creation  *JobCreationService
	Deletion  *JobDeletionService
	Logs      *JobLogService
}

// NewEngine composes every job service around the given adapters.
func NewEngine(
	repo core.JobRepository,
	client core.AgentClient,
	parser core.WorkflowParser,
	resolver core.PromptResolver,
	cfg EngineConfig,
) *Engine {
	opts := cfg.Options.withDefaults()

	e := &Engine{
		Launcher: NewAgentLauncher(client, repo, opts),
		Prompts:  NewPromptProcessor(client, repo, opts),
		Fallback: NewFallbackExecutor(client, resolver, repo, opts),
		Results:  NewResultExtractor(client),
		Checker:  NewCompletionChecker(repo),
		Creation: NewJobCreationService(repo, parser, resolver, opts),
		Deletion: NewJobDeletionService(repo, client, opts),
		Logs:     NewJobLogService(repo, client, opts),
	}
	e.Sequence = NewSequenceWorkflowHandler(client, repo, e.Launcher, e.Prompts, e.Fallback, e.Results, opts)
	e.Parallel = NewParallelWorkflowHandler(repo, e.Results, opts)
	e.Child = NewChildWorkflowHandler(repo, parser, e.Sequence, opts)
	e.Processor = NewJobProcessor(repo, parser, e.Sequence, e.Parallel, e.Child, opts)
	e.Polling = NewJobPollingService(e.Processor, e.Checker, cfg.PollingInterval, opts)
	e.Scheduler = NewScheduler(e.Processor, cfg.PollingInterval, opts)
	return e
}
