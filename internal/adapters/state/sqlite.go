package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/churrera-dev/churrera/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteJobRepository implements core.JobRepository with SQLite storage.
type SQLiteJobRepository struct {
	dbPath string
	db     *sql.DB
	mu     sync.RWMutex
}

var _ core.JobRepository = (*SQLiteJobRepository)(nil)

// NewSQLiteJobRepository opens (creating if needed) the job database at dbPath
// and applies pending migrations.
func NewSQLiteJobRepository(dbPath string) (*SQLiteJobRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	r := &SQLiteJobRepository{dbPath: dbPath, db: db}
	if err := r.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *SQLiteJobRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (r *SQLiteJobRepository) Path() string {
	return r.dbPath
}

func (r *SQLiteJobRepository) migrate() error {
	var version int
	if err := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		// Table doesn't exist yet.
		version = 0
	}

	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		v, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if v <= version {
			continue
		}
		script, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := r.db.Exec(string(script)); err != nil {
			return fmt.Errorf("applying migration v%d: %w", v, err)
		}
	}
	return nil
}

// migrationVersion extracts 2 from "migrations/002_timeout_fallback.sql".
func migrationVersion(name string) (int, error) {
	base := filepath.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, fmt.Errorf("migration %s has no version prefix", name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("migration %s: %w", name, err)
	}
	return v, nil
}

const jobColumns = `job_id, path, agent_id, model, repository, status, created_at, last_update,
	parent_job_id, result, type, timeout_millis, workflow_start_time, fallback_src, fallback_executed`

// FindUnfinishedJobs returns every non-terminal job in creation order.
func (r *SQLiteJobRepository) FindUnfinishedJobs(ctx context.Context) ([]core.Job, error) {
	terminal := terminalStatuses()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(terminal)), ",")
	args := make([]any, len(terminal))
	for i, s := range terminal {
		args[i] = s
	}
	return r.queryJobs(ctx, "finding unfinished jobs",
		`SELECT `+jobColumns+` FROM jobs WHERE status NOT IN (`+placeholders+`) ORDER BY created_at, rowid`,
		args...)
}

// FindAll returns every job in creation order.
func (r *SQLiteJobRepository) FindAll(ctx context.Context) ([]core.Job, error) {
	return r.queryJobs(ctx, "listing jobs",
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at, rowid`)
}

// FindChildren returns the children of parentID in creation order.
func (r *SQLiteJobRepository) FindChildren(ctx context.Context, parentID string) ([]core.Job, error) {
	return r.queryJobs(ctx, "finding children",
		`SELECT `+jobColumns+` FROM jobs WHERE parent_job_id = ? ORDER BY created_at, rowid`,
		parentID)
}

// FindByID returns the job or a not-found error.
func (r *SQLiteJobRepository) FindByID(ctx context.Context, id string) (core.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Job{}, core.ErrNotFound("job", id)
	}
	if err != nil {
		return core.Job{}, core.ErrStorage("loading job").WithCause(err).WithDetail("job_id", id)
	}
	return job, nil
}

// FindJobWithDetails returns the job with its prompts ordered by ordinal.
func (r *SQLiteJobRepository) FindJobWithDetails(ctx context.Context, id string) (core.JobDetails, error) {
	job, err := r.FindByID(ctx, id)
	if err != nil {
		return core.JobDetails{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT prompt_id, job_id, ordinal, src, content, status, created_at, last_update
		FROM prompts WHERE job_id = ? ORDER BY ordinal
	`, id)
	if err != nil {
		return core.JobDetails{}, core.ErrStorage("loading prompts").WithCause(err).WithDetail("job_id", id)
	}
	defer rows.Close()

	details := core.JobDetails{Job: job}
	for rows.Next() {
		var p core.Prompt
		var src sql.NullString
		var status string
		var createdAt, lastUpdate int64
		if err := rows.Scan(&p.ID, &p.JobID, &p.Ordinal, &src, &p.Content, &status, &createdAt, &lastUpdate); err != nil {
			return core.JobDetails{}, core.ErrStorage("scanning prompt").WithCause(err)
		}
		p.Src = src.String
		p.Status = core.PromptStatus(status)
		p.CreatedAt = fromUnixNano(createdAt)
		p.LastUpdate = fromUnixNano(lastUpdate)
		details.Prompts = append(details.Prompts, p)
	}
	if err := rows.Err(); err != nil {
		return core.JobDetails{}, core.ErrStorage("iterating prompts").WithCause(err)
	}
	return details, nil
}

// Save inserts or replaces a job.
func (r *SQLiteJobRepository) Save(ctx context.Context, job core.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			path = excluded.path,
			agent_id = excluded.agent_id,
			model = excluded.model,
			repository = excluded.repository,
			status = excluded.status,
			last_update = excluded.last_update,
			parent_job_id = excluded.parent_job_id,
			result = excluded.result,
			type = excluded.type,
			timeout_millis = excluded.timeout_millis,
			workflow_start_time = excluded.workflow_start_time,
			fallback_src = excluded.fallback_src,
			fallback_executed = excluded.fallback_executed
	`,
		job.ID, job.Path, nullableString(job.AgentID), job.Model, job.Repository,
		string(job.Status), job.CreatedAt.UnixNano(), job.LastUpdate.UnixNano(),
		nullableString(job.ParentJobID), nullableString(job.Result), nullableString(string(job.Type)),
		nullableInt64(job.TimeoutMillis), nullableTime(job.WorkflowStartTime),
		nullableString(job.FallbackSrc), job.FallbackExecuted,
	)
	if err != nil {
		return core.ErrStorage("saving job").WithCause(err).WithDetail("job_id", job.ID)
	}
	return nil
}

// SavePrompt inserts or replaces a prompt record. The job must exist.
func (r *SQLiteJobRepository) SavePrompt(ctx context.Context, p core.Prompt) error {
	if p.ID == "" || p.JobID == "" {
		return core.ErrValidation(core.CodeInvalidJob, "prompt id and job id are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prompts (prompt_id, job_id, ordinal, src, content, status, created_at, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(prompt_id) DO UPDATE SET
			src = excluded.src,
			content = excluded.content,
			status = excluded.status,
			last_update = excluded.last_update
	`,
		p.ID, p.JobID, p.Ordinal, nullableString(p.Src), p.Content, string(p.Status),
		p.CreatedAt.UnixNano(), p.LastUpdate.UnixNano(),
	)
	if err != nil {
		return core.ErrStorage("saving prompt").WithCause(err).WithDetail("job_id", p.JobID)
	}
	return nil
}

// Delete removes a job and its prompt records. Deleting a missing job is not an error.
func (r *SQLiteJobRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ErrStorage("beginning transaction").WithCause(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM prompts WHERE job_id = ?", id); err != nil {
		return core.ErrStorage("deleting prompts").WithCause(err).WithDetail("job_id", id)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE job_id = ?", id); err != nil {
		return core.ErrStorage("deleting job").WithCause(err).WithDetail("job_id", id)
	}
	if err := tx.Commit(); err != nil {
		return core.ErrStorage("committing delete").WithCause(err).WithDetail("job_id", id)
	}
	return nil
}

func (r *SQLiteJobRepository) queryJobs(ctx context.Context, op, query string, args ...any) ([]core.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.ErrStorage(op).WithCause(err)
	}
	defer rows.Close()

	var jobs []core.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, core.ErrStorage(op).WithCause(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrStorage(op).WithCause(err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (core.Job, error) {
	var job core.Job
	var agentID, parentID, result, jobType, fallbackSrc sql.NullString
	var timeoutMillis, startTime sql.NullInt64
	var status string
	var createdAt, lastUpdate int64

	err := row.Scan(
		&job.ID, &job.Path, &agentID, &job.Model, &job.Repository, &status,
		&createdAt, &lastUpdate, &parentID, &result, &jobType,
		&timeoutMillis, &startTime, &fallbackSrc, &job.FallbackExecuted,
	)
	if err != nil {
		return core.Job{}, err
	}

	job.AgentID = agentID.String
	job.Status = core.AgentState(status)
	job.CreatedAt = fromUnixNano(createdAt)
	job.LastUpdate = fromUnixNano(lastUpdate)
	job.ParentJobID = parentID.String
	job.Result = result.String
	job.Type = core.ParseWorkflowType(jobType.String)
	job.TimeoutMillis = timeoutMillis.Int64
	if startTime.Valid {
		job.WorkflowStartTime = fromUnixNano(startTime.Int64)
	}
	job.FallbackSrc = fallbackSrc.String
	return job, nil
}

func terminalStatuses() []string {
	var out []string
	for _, s := range core.AllAgentStates() {
		if s.IsTerminal() {
			out = append(out, string(s))
		}
	}
	return out
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullableTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromUnixNano(v int64) time.Time {
	return time.Unix(0, v)
}
