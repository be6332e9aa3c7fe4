package core

import "time"

// PromptStatus tracks delivery of a prompt to the remote agent.
type PromptStatus string

const (
	PromptStatusPending PromptStatus = "PENDING"
	PromptStatusSent    PromptStatus = "SENT"
)

// LaunchOrdinal is the ordinal of the prompt used to start the agent.
const LaunchOrdinal = 0

// Prompt is the persisted delivery record for one prompt of a job.
// Ordinal 0 is the launch prompt; update prompts follow in order.
type Prompt struct {
	ID         string
	JobID      string
	Ordinal    int
	Src        string
	Content    string
	Status     PromptStatus
	CreatedAt  time.Time
	LastUpdate time.Time
}

// NewPrompt creates a pending prompt record.
func NewPrompt(id, jobID string, ordinal int, src, content string) Prompt {
	now := time.Now()
	return Prompt{
		ID:         id,
		JobID:      jobID,
		Ordinal:    ordinal,
		Src:        src,
		Content:    content,
		Status:     PromptStatusPending,
		CreatedAt:  now,
		LastUpdate: now,
	}
}

// IsSent reports whether the prompt has been delivered.
func (p Prompt) IsSent() bool {
	return p.Status == PromptStatusSent
}

// MarkSent returns a delivered copy of the prompt.
func (p Prompt) MarkSent() Prompt {
	p.Status = PromptStatusSent
	now := time.Now()
	if now.Before(p.LastUpdate) {
		now = p.LastUpdate
	}
	p.LastUpdate = now
	return p
}

// JobDetails bundles a job with its prompt records ordered by ordinal.
type JobDetails struct {
	Job     Job
	Prompts []Prompt
}

// LaunchPrompt returns the launch prompt record, if present.
func (d JobDetails) LaunchPrompt() (Prompt, bool) {
	for _, p := range d.Prompts {
		if p.Ordinal == LaunchOrdinal {
			return p, true
		}
	}
	return Prompt{}, false
}

// UpdatePrompts returns the prompts that follow the launch prompt.
func (d JobDetails) UpdatePrompts() []Prompt {
	out := make([]Prompt, 0, len(d.Prompts))
	for _, p := range d.Prompts {
		if p.Ordinal > LaunchOrdinal {
			out = append(out, p)
		}
	}
	return out
}
