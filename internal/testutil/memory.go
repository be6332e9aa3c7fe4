package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/churrera-dev/churrera/internal/core"
)

// MemoryJobRepository is an in-memory core.JobRepository.
type MemoryJobRepository struct {
	mu      sync.Mutex
	jobs    map[string]core.Job
	order   map[string]int
	prompts map[string]map[string]core.Prompt // job id -> prompt id -> prompt
	seq     int
	errs    map[string]error
	fails   map[string]int // method -> calls left before errs[method] clears
	saves   int
}

var _ core.JobRepository = (*MemoryJobRepository)(nil)

// NewMemoryJobRepository creates an empty repository.
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs:    make(map[string]core.Job),
		order:   make(map[string]int),
		prompts: make(map[string]map[string]core.Prompt),
		errs:    make(map[string]error),
		fails:   make(map[string]int),
	}
}

// SetError makes every call to method fail with err until cleared with nil.
func (r *MemoryJobRepository) SetError(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fails, method)
	if err == nil {
		delete(r.errs, method)
		return
	}
	r.errs[method] = err
}

// FailNext makes the next n calls to method fail with err.
func (r *MemoryJobRepository) FailNext(method string, n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[method] = err
	r.fails[method] = n
}

// errFor returns the error configured for method, consuming one of the
// failures set by FailNext. Callers hold r.mu.
func (r *MemoryJobRepository) errFor(method string) error {
	err := r.errs[method]
	if err == nil {
		return nil
	}
	if n, ok := r.fails[method]; ok {
		if n <= 1 {
			delete(r.fails, method)
			delete(r.errs, method)
		} else {
			r.fails[method] = n - 1
		}
	}
	return err
}

// SaveCount returns how many times Save succeeded.
func (r *MemoryJobRepository) SaveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// Get returns a job without error handling, for assertions.
func (r *MemoryJobRepository) Get(id string) (core.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// FindUnfinishedJobs implements core.JobRepository.
func (r *MemoryJobRepository) FindUnfinishedJobs(context.Context) ([]core.Job, error) {
	return r.filter("FindUnfinishedJobs", func(j core.Job) bool { return !j.Status.IsTerminal() })
}

// FindAll implements core.JobRepository.
func (r *MemoryJobRepository) FindAll(context.Context) ([]core.Job, error) {
	return r.filter("FindAll", func(core.Job) bool { return true })
}

// FindChildren implements core.JobRepository.
func (r *MemoryJobRepository) FindChildren(_ context.Context, parentID string) ([]core.Job, error) {
	return r.filter("FindChildren", func(j core.Job) bool { return j.ParentJobID == parentID })
}

// FindByID implements core.JobRepository.
func (r *MemoryJobRepository) FindByID(_ context.Context, id string) (core.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errFor("FindByID"); err != nil {
		return core.Job{}, err
	}
	job, ok := r.jobs[id]
	if !ok {
		return core.Job{}, core.ErrNotFound("job", id)
	}
	return job, nil
}

// FindJobWithDetails implements core.JobRepository.
func (r *MemoryJobRepository) FindJobWithDetails(_ context.Context, id string) (core.JobDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errFor("FindJobWithDetails"); err != nil {
		return core.JobDetails{}, err
	}
	job, ok := r.jobs[id]
	if !ok {
		return core.JobDetails{}, core.ErrNotFound("job", id)
	}
	prompts := make([]core.Prompt, 0, len(r.prompts[id]))
	for _, p := range r.prompts[id] {
		prompts = append(prompts, p)
	}
	sort.Slice(prompts, func(i, j int) bool { return prompts[i].Ordinal < prompts[j].Ordinal })
	return core.JobDetails{Job: job, Prompts: prompts}, nil
}

// Save implements core.JobRepository.
func (r *MemoryJobRepository) Save(_ context.Context, job core.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errFor("Save"); err != nil {
		return err
	}
	if _, ok := r.order[job.ID]; !ok {
		r.seq++
		r.order[job.ID] = r.seq
	}
	r.jobs[job.ID] = job
	r.saves++
	return nil
}

// SavePrompt implements core.JobRepository.
func (r *MemoryJobRepository) SavePrompt(_ context.Context, p core.Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errFor("SavePrompt"); err != nil {
		return err
	}
	if _, ok := r.jobs[p.JobID]; !ok {
		return core.ErrStorage("prompt references unknown job").WithDetail("job_id", p.JobID)
	}
	if r.prompts[p.JobID] == nil {
		r.prompts[p.JobID] = make(map[string]core.Prompt)
	}
	r.prompts[p.JobID][p.ID] = p
	return nil
}

// Delete implements core.JobRepository.
func (r *MemoryJobRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errFor("Delete"); err != nil {
		return err
	}
	delete(r.jobs, id)
	delete(r.order, id)
	delete(r.prompts, id)
	return nil
}

func (r *MemoryJobRepository) filter(method string, keep func(core.Job) bool) ([]core.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errFor(method); err != nil {
		return nil, err
	}
	var out []core.Job
	for _, j := range r.jobs {
		if keep(j) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.order[out[i].ID] < r.order[out[j].ID]
	})
	return out, nil
}
