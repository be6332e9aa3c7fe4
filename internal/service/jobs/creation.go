package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
)

// JobCreationService turns workflow files into persisted jobs.
type JobCreationService struct {
	repo     core.JobRepository
	parser   core.WorkflowParser
	resolver core.PromptResolver
	events   events.Publisher
	logger   *slog.Logger
}

// NewJobCreationService creates a creation service.
func NewJobCreationService(repo core.JobRepository, parser core.WorkflowParser, resolver core.PromptResolver, opts Options) *JobCreationService {
	opts = opts.withDefaults()
	return &JobCreationService{
		repo:     repo,
		parser:   parser,
		resolver: resolver,
		events:   opts.Events,
		logger:   opts.Logger,
	}
}

// Create parses and validates the workflow at path and persists a pending
// job for it. Sequence jobs get their prompt records; parallel jobs get
// theirs per child when they fan out.
func (s *JobCreationService) Create(ctx context.Context, path string) (core.Job, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return core.Job{}, core.ErrValidation(core.CodeInvalidWorkflow, "invalid workflow path").WithCause(err)
	}
	model, err := s.parser.Parse(ctx, abs)
	if err != nil {
		return core.Job{}, fmt.Errorf("parsing workflow %s: %w", abs, err)
	}
	if err := s.validate(ctx, abs, model); err != nil {
		return core.Job{}, err
	}

	job := core.NewJob(uuid.NewString(), abs, topLevelModel(model), topLevelRepository(model)).
		WithType(model.Type()).
		WithTimeoutMillis(model.Timeout()).
		WithFallbackSrc(model.Fallback())
	if err := s.repo.Save(ctx, job); err != nil {
		return core.Job{}, fmt.Errorf("saving job: %w", err)
	}

	if !model.IsParallel() {
		infos := append([]core.PromptInfo{model.LaunchPrompt}, model.UpdatePrompts...)
		for _, p := range BuildPrompts(job.ID, infos) {
			if err := s.repo.SavePrompt(ctx, p); err != nil {
				return core.Job{}, fmt.Errorf("saving prompt %d of job %s: %w", p.Ordinal, job.ID, err)
			}
		}
	}

	s.events.Publish(events.NewJobCreatedEvent(job.ID, abs, string(job.Type)))
	s.logger.Info("job created",
		"job_id", job.ID,
		"path", abs,
		"type", job.Type,
		"timeout_ms", job.TimeoutMillis)
	return job, nil
}

func (s *JobCreationService) validate(ctx context.Context, path string, model *core.WorkflowModel) error {
	if err := model.Validate(); err != nil {
		return err
	}
	if model.IsParallel() {
		if _, err := ParseBindResultType(model.Parallel.BindResultType); err != nil {
			return err
		}
	}

	srcs := []string{model.Fallback()}
	if model.IsParallel() {
		for _, seq := range model.Parallel.Sequences {
			srcs = append(srcs, seq.FallbackSrc)
		}
	}
	for _, src := range srcs {
		if src == "" {
			continue
		}
		if _, err := s.resolver.ResolvePrompt(ctx, path, src); err != nil {
			return core.ErrValidation(core.CodeInvalidWorkflow, "fallback prompt cannot be read").
				WithDetail("src", src).
				WithCause(err)
		}
	}
	return nil
}

func topLevelModel(m *core.WorkflowModel) string {
	if m.Model != "" || !m.IsParallel() {
		return m.Model
	}
	return m.Parallel.Sequences[0].Model
}

func topLevelRepository(m *core.WorkflowModel) string {
	if m.Repository != "" || !m.IsParallel() {
		return m.Repository
	}
	return m.Parallel.Sequences[0].Repository
}
