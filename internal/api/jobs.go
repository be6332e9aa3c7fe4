package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/churrera-dev/churrera/internal/core"
)

// JobResponse is the JSON view of a job.
type JobResponse struct {
	ID                string     `json:"id"`
	Path              string     `json:"path"`
	AgentID           string     `json:"agent_id,omitempty"`
	Model             string     `json:"model"`
	Repository        string     `json:"repository"`
	Status            string     `json:"status"`
	Type              string     `json:"type,omitempty"`
	ParentJobID       string     `json:"parent_job_id,omitempty"`
	Result            string     `json:"result,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastUpdate        time.Time  `json:"last_update"`
	TimeoutMillis     int64      `json:"timeout_ms,omitempty"`
	WorkflowStartTime *time.Time `json:"workflow_start_time,omitempty"`
	FallbackSrc       string     `json:"fallback_src,omitempty"`
	FallbackExecuted  bool       `json:"fallback_executed"`
}

// PromptResponse is the JSON view of a prompt record.
type PromptResponse struct {
	Ordinal    int       `json:"ordinal"`
	Src        string    `json:"src,omitempty"`
	Status     string    `json:"status"`
	LastUpdate time.Time `json:"last_update"`
}

// JobDetailResponse is a job with its prompts and children.
type JobDetailResponse struct {
	JobResponse
	Prompts  []PromptResponse `json:"prompts"`
	Children []JobResponse    `json:"children,omitempty"`
}

func toJobResponse(j core.Job) JobResponse {
	resp := JobResponse{
		ID:               j.ID,
		Path:             j.Path,
		AgentID:          j.AgentID,
		Model:            j.Model,
		Repository:       j.Repository,
		Status:           j.Status.String(),
		Type:             string(j.Type),
		ParentJobID:      j.ParentJobID,
		Result:           j.Result,
		CreatedAt:        j.CreatedAt,
		LastUpdate:       j.LastUpdate,
		TimeoutMillis:    j.TimeoutMillis,
		FallbackSrc:      j.FallbackSrc,
		FallbackExecuted: j.FallbackExecuted,
	}
	if !j.WorkflowStartTime.IsZero() {
		t := j.WorkflowStartTime
		resp.WorkflowStartTime = &t
	}
	return resp
}

// handleListJobs lists jobs. ?state=active or ?state=finished filters by
// status category; ?top=true hides child jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.FindAll(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	state := r.URL.Query().Get("state")
	switch state {
	case "", "active", "finished":
	default:
		respondError(w, http.StatusBadRequest, "state must be active or finished")
		return
	}
	topOnly := r.URL.Query().Get("top") == "true"

	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		if state == "active" && j.Status.IsTerminal() || state == "finished" && !j.Status.IsTerminal() {
			continue
		}
		if topOnly && j.IsChild() {
			continue
		}
		out = append(out, toJobResponse(j))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	details, err := s.jobs.FindJobWithDetails(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	children, err := s.jobs.FindChildren(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	resp := JobDetailResponse{
		JobResponse: toJobResponse(details.Job),
		Prompts:     make([]PromptResponse, 0, len(details.Prompts)),
	}
	for _, p := range details.Prompts {
		resp.Prompts = append(resp.Prompts, PromptResponse{
			Ordinal:    p.Ordinal,
			Src:        p.Src,
			Status:     string(p.Status),
			LastUpdate: p.LastUpdate,
		})
	}
	for _, c := range children {
		resp.Children = append(resp.Children, toJobResponse(c))
	}
	respondJSON(w, http.StatusOK, resp)
}
