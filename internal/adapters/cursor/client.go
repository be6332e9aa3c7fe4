// Package cursor implements core.AgentClient against the Cursor cloud
// agents REST API.
package cursor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/churrera-dev/churrera/internal/core"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.cursor.com"

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	RequestsPerSecond float64
	Burst             int

	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		Burst:             5,
		MaxAttempts:       4,
		InitialInterval:   500 * time.Millisecond,
		MaxInterval:       10 * time.Second,
	}
}

// Client talks to the remote agent service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *slog.Logger

	maxAttempts int
	newBackOff  func() backoff.BackOff
}

var _ core.AgentClient = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBackOff replaces the backoff policy factory.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = factory }
}

// New creates a client. An API key is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, core.ErrAuth("api key is not configured (set CURSOR_API_KEY)")
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxAttempts: cfg.MaxAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = cfg.InitialInterval
			b.MaxInterval = cfg.MaxInterval
			b.MaxElapsedTime = 0
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Launch starts a new agent.
func (c *Client) Launch(ctx context.Context, req core.LaunchRequest) (*core.AgentInfo, error) {
	body := launchRequest{
		Prompt: promptBody{Text: req.Prompt},
		Model:  req.Model,
		Source: sourceBody{Repository: req.Repository, Ref: req.Ref},
	}
	var resp agentResponse
	if err := c.do(ctx, call{
		method: http.MethodPost, path: "/v0/agents", body: body, out: &resp,
		code: core.CodeLaunchFailed,
	}); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, core.ErrExecution(core.CodeLaunchFailed, "launch response carried no agent id")
	}
	return resp.toAgentInfo(), nil
}

// GetStatus returns the current snapshot of an agent.
func (c *Client) GetStatus(ctx context.Context, agentID string) (*core.AgentInfo, error) {
	var resp agentResponse
	if err := c.do(ctx, call{
		method: http.MethodGet, path: "/v0/agents/" + url.PathEscape(agentID), out: &resp,
		code: core.CodeStatusFailed, idempotent: true,
	}); err != nil {
		return nil, err
	}
	return resp.toAgentInfo(), nil
}

// SendFollowUp delivers an additional prompt to an agent.
func (c *Client) SendFollowUp(ctx context.Context, agentID, prompt string) error {
	return c.do(ctx, call{
		method: http.MethodPost, path: "/v0/agents/" + url.PathEscape(agentID) + "/followup",
		body: followUpRequest{Prompt: promptBody{Text: prompt}}, out: &idResponse{},
		code: core.CodeFollowUpFailed,
	})
}

// GetConversation returns the agent's messages.
func (c *Client) GetConversation(ctx context.Context, agentID string) (*core.Conversation, error) {
	var resp conversationResponse
	if err := c.do(ctx, call{
		method: http.MethodGet, path: "/v0/agents/" + url.PathEscape(agentID) + "/conversation", out: &resp,
		code: core.CodeConversationFailed, idempotent: true,
	}); err != nil {
		return nil, err
	}
	conv := &core.Conversation{AgentID: agentID, Messages: make([]core.ConversationMessage, 0, len(resp.Messages))}
	for _, m := range resp.Messages {
		conv.Messages = append(conv.Messages, core.ConversationMessage{ID: m.ID, Type: m.Type, Text: m.Text})
	}
	return conv, nil
}

// DeleteAgent removes an agent.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	return c.do(ctx, call{
		method: http.MethodDelete, path: "/v0/agents/" + url.PathEscape(agentID), out: &idResponse{},
		code: core.CodeRemoteRejected, idempotent: true,
	})
}

// ListModels returns the model identifiers the service accepts.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var resp modelsResponse
	if err := c.do(ctx, call{
		method: http.MethodGet, path: "/v0/models", out: &resp,
		code: core.CodeRemoteRejected, idempotent: true,
	}); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// ListRepositories returns the repository URLs the service can work on.
func (c *Client) ListRepositories(ctx context.Context) ([]string, error) {
	var resp repositoriesResponse
	if err := c.do(ctx, call{
		method: http.MethodGet, path: "/v0/repositories", out: &resp,
		code: core.CodeRemoteRejected, idempotent: true,
	}); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Repositories))
	for _, r := range resp.Repositories {
		if r.Repository != "" {
			out = append(out, r.Repository)
			continue
		}
		out = append(out, "https://github.com/"+r.Owner+"/"+r.Name)
	}
	return out, nil
}

func (r agentResponse) toAgentInfo() *core.AgentInfo {
	info := &core.AgentInfo{
		ID:        r.ID,
		Name:      r.Name,
		Status:    r.Status,
		Summary:   r.Summary,
		CreatedAt: r.CreatedAt,
	}
	if r.Target != nil {
		info.BranchURL = r.Target.URL
	}
	return info
}

type call struct {
	method string
	path   string
	body   any
	out    any
	code   string
	// idempotent calls are retried on any transient failure; others only
	// when the service rejected them before processing (429).
	idempotent bool
}

func (c *Client) do(ctx context.Context, req call) error {
	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return core.ErrValidation(req.code, "encoding request").WithCause(err)
		}
	}

	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Acquire(ctx); err != nil {
			return backoff.Permanent(core.ErrNetwork("waiting for rate limiter").WithCause(err))
		}
		err := c.send(ctx, req, payload)
		if err == nil {
			return nil
		}
		if !c.shouldRetry(req, err) {
			return backoff.Permanent(err)
		}
		c.logger.Debug("retrying remote call",
			"method", req.method, "path", req.path, "attempt", attempt, "error", err)
		return err
	}

	policy := backoff.WithMaxRetries(backoff.WithContext(c.newBackOff(), ctx), uint64(c.maxAttempts-1))
	return backoff.Retry(op, policy)
}

func (c *Client) shouldRetry(req call, err error) bool {
	if !core.IsRetryable(err) {
		return false
	}
	if req.idempotent {
		return true
	}
	return core.IsCategory(err, core.ErrCatRateLimit)
}

func (c *Client) send(ctx context.Context, req call, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return core.ErrValidation(req.code, "building request").WithCause(err)
	}
	c.setHeaders(httpReq, payload != nil)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return core.ErrNetwork("request cancelled").WithCause(ctx.Err())
		}
		return core.ErrNetwork(fmt.Sprintf("%s %s failed", req.method, req.path)).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return core.ErrNetwork("reading response").WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(req, resp.StatusCode, data)
	}
	if req.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, req.out); err != nil {
		return core.ErrExecution(core.CodeParseFailed, "decoding response").WithCause(err).WithDetail("path", req.path)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

func statusError(req call, status int, body []byte) error {
	msg := http.StatusText(status)
	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		switch {
		case er.Message != "":
			msg = er.Message
		case er.Error != "":
			msg = er.Error
		}
	}
	msg = fmt.Sprintf("%s %s: %d %s", req.method, req.path, status, msg)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrAuth(msg)
	case status == http.StatusNotFound:
		return core.ErrNotFound("remote resource", req.path)
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimit(msg)
	case status >= 500:
		return core.ErrExecution(req.code, msg).WithDetail("status", status)
	default:
		e := core.ErrExecution(core.CodeRemoteRejected, msg).WithDetail("status", status)
		e.Retryable = false
		return e
	}
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var de *core.DomainError
	return errors.As(err, &de) && de.Category == core.ErrCatNotFound
}
