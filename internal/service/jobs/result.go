package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/churrera-dev/churrera/internal/core"
)

// BindResultType names the strategy that folds child results into the
// parent result.
type BindResultType string

const (
	BindList   BindResultType = "list"
	BindConcat BindResultType = "concat"
	BindFirst  BindResultType = "first"
)

// ParseBindResultType normalizes a workflow tag. Empty selects list, as
// does any tag of the form List_<anything>.
func ParseBindResultType(tag string) (BindResultType, error) {
	t := strings.ToLower(strings.TrimSpace(tag))
	switch {
	case t == "", t == string(BindList), strings.HasPrefix(t, "list_"):
		return BindList, nil
	case t == string(BindConcat):
		return BindConcat, nil
	case t == string(BindFirst):
		return BindFirst, nil
	}
	return "", core.ErrValidation(core.CodeUnknownBindResult, "unknown bind result type").WithDetail("type", tag)
}

// ResultExtractor reads job results from agent conversations and folds
// child results together.
type ResultExtractor struct {
	client core.AgentClient
}

// NewResultExtractor creates a result extractor.
func NewResultExtractor(client core.AgentClient) *ResultExtractor {
	return &ResultExtractor{client: client}
}

// Extract returns the result of a job's agent: the last assistant message,
// narrowed to the contents of its <result> block when it has one. A job
// without an agent or without assistant messages has an empty result.
func (e *ResultExtractor) Extract(ctx context.Context, job core.Job) (string, error) {
	if !job.IsLaunched() {
		return "", nil
	}
	conv, err := e.client.GetConversation(ctx, job.AgentID)
	if err != nil {
		return "", fmt.Errorf("reading conversation of agent %s: %w", job.AgentID, err)
	}
	msg, ok := conv.LastAssistantMessage()
	if !ok {
		return "", nil
	}
	return ExtractResultBlock(msg.Text), nil
}

// ExtractResultBlock returns the trimmed contents of the last
// <result>...</result> block in text, or the trimmed text when there is none.
func ExtractResultBlock(text string) string {
	const open, closing = "<result>", "</result>"
	end := strings.LastIndex(text, closing)
	if end < 0 {
		return strings.TrimSpace(text)
	}
	start := strings.LastIndex(text[:end], open)
	if start < 0 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[start+len(open) : end])
}

// Aggregate folds the results of children, in order, using the strategy
// named by tag.
func (e *ResultExtractor) Aggregate(children []core.Job, tag string) (string, error) {
	bind, err := ParseBindResultType(tag)
	if err != nil {
		return "", err
	}
	results := make([]string, len(children))
	for i, c := range children {
		results[i] = c.Result
	}

	switch bind {
	case BindConcat:
		nonEmpty := results[:0:0]
		for _, r := range results {
			if r != "" {
				nonEmpty = append(nonEmpty, r)
			}
		}
		return strings.Join(nonEmpty, "\n\n"), nil
	case BindFirst:
		for _, r := range results {
			if r != "" {
				return r, nil
			}
		}
		return "", nil
	default:
		data, err := json.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("encoding child results: %w", err)
		}
		return string(data), nil
	}
}
