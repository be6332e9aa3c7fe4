package cursor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churrera-dev/churrera/internal/core"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-key"
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	cfg.MaxAttempts = 3

	c, err := New(cfg, WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(DefaultConfig())
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatAuth))
}

func TestClient_Launch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v0/agents", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body launchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "do the thing", body.Prompt.Text)
		assert.Equal(t, "claude-4-sonnet", body.Model)
		assert.Equal(t, "https://github.com/org/repo", body.Source.Repository)

		writeJSON(t, w, http.StatusCreated, map[string]any{
			"id":        "bc_123",
			"name":      "agent",
			"status":    "CREATING",
			"createdAt": "2025-01-02T03:04:05Z",
			"target":    map[string]any{"url": "https://cursor.com/agents?id=bc_123"},
		})
	}))

	info, err := c.Launch(context.Background(), core.LaunchRequest{
		Prompt: "do the thing", Model: "claude-4-sonnet", Repository: "https://github.com/org/repo",
	})
	require.NoError(t, err)
	assert.Equal(t, "bc_123", info.ID)
	assert.Equal(t, core.AgentStateCreating, core.AgentStateOf(info))
	assert.Equal(t, "https://cursor.com/agents?id=bc_123", info.BranchURL)
	assert.Equal(t, 2025, info.CreatedAt.Year())
}

func TestClient_LaunchWithoutIDFails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"status": "CREATING"})
	}))

	_, err := c.Launch(context.Background(), core.LaunchRequest{Prompt: "p", Repository: "r"})
	require.Error(t, err)
}

func TestClient_GetStatusRetriesTransientFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/agents/bc_1", r.URL.Path)
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(t, w, http.StatusServiceUnavailable, map[string]any{"error": "busy"})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"id": "bc_1", "status": "RUNNING"})
	}))

	info, err := c.GetStatus(context.Background(), "bc_1")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", info.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GetStatusGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.GetStatus(context.Background(), "bc_1")
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_FollowUpNotRetriedOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := c.SendFollowUp(context.Background(), "bc_1", "next")
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err), "the sweep may still retry later")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_FollowUpRetriedOnRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/agents/bc_1/followup", r.URL.Path)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var body followUpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "next", body.Prompt.Text)
		writeJSON(t, w, http.StatusOK, map[string]any{"id": "bc_1"})
	}))

	require.NoError(t, c.SendFollowUp(context.Background(), "bc_1", "next"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		category  core.ErrorCategory
		retryable bool
	}{
		{http.StatusUnauthorized, core.ErrCatAuth, false},
		{http.StatusForbidden, core.ErrCatAuth, false},
		{http.StatusNotFound, core.ErrCatNotFound, false},
		{http.StatusBadRequest, core.ErrCatExecution, false},
		{http.StatusTooManyRequests, core.ErrCatRateLimit, true},
		{http.StatusInternalServerError, core.ErrCatExecution, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, map[string]any{"message": "nope"})
			}))

			_, err := c.GetConversation(context.Background(), "bc_1")
			require.Error(t, err)
			assert.Equal(t, tt.category, core.GetCategory(err))
			assert.Equal(t, tt.retryable, core.IsRetryable(err))
		})
	}
}

func TestClient_GetConversation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/agents/bc_1/conversation", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"id": "bc_1",
			"messages": []map[string]any{
				{"id": "m1", "type": "user_message", "text": "hi"},
				{"id": "m2", "type": "assistant_message", "text": "<result>42</result>"},
			},
		})
	}))

	conv, err := c.GetConversation(context.Background(), "bc_1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	last, ok := conv.LastAssistantMessage()
	require.True(t, ok)
	assert.Equal(t, "<result>42</result>", last.Text)
}

func TestClient_DeleteAgentAndNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/v0/agents/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"id": "bc_1"})
	}))

	require.NoError(t, c.DeleteAgent(context.Background(), "bc_1"))
	assert.True(t, IsNotFound(c.DeleteAgent(context.Background(), "gone")))
}

func TestClient_ListModelsAndRepositories(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/models":
			writeJSON(t, w, http.StatusOK, map[string]any{"models": []string{"claude-4-sonnet", "gpt-5"}})
		case "/v0/repositories":
			writeJSON(t, w, http.StatusOK, map[string]any{"repositories": []map[string]any{
				{"owner": "org", "name": "a", "repository": "https://github.com/org/a"},
				{"owner": "org", "name": "b"},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-4-sonnet", "gpt-5"}, models)

	repos, err := c.ListRepositories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://github.com/org/a", "https://github.com/org/b"}, repos)
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetStatus(ctx, "bc_1")
	assert.Error(t, err)
}
