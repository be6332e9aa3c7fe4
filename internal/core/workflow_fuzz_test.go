//go:build go1.18

package core

import (
	"testing"
)

// FuzzClassifyAgentState checks that any remote status string maps to a
// known state and that the state predicates stay consistent.
func FuzzClassifyAgentState(f *testing.F) {
	f.Add("RUNNING")
	f.Add("finished")
	f.Add("  Completed ")
	f.Add("")
	f.Add("EXPIRED")
	f.Add("not-a-status")

	known := map[AgentState]bool{}
	for _, s := range AllAgentStates() {
		known[s] = true
	}

	f.Fuzz(func(t *testing.T, status string) {
		s := ClassifyAgentState(status)
		if !known[s] {
			t.Fatalf("status %q classified as unknown value %q", status, s)
		}
		if s.IsTerminal() == s.IsActive() {
			t.Fatalf("%s is both or neither terminal and active", s)
		}
		if s.IsSuccessful() && s.IsFailed() {
			t.Fatalf("%s is both successful and failed", s)
		}
		if (s.IsSuccessful() || s.IsFailed()) && !s.IsTerminal() {
			t.Fatalf("%s has an outcome but is not terminal", s)
		}
		if ClassifyAgentState(s.String()) != s {
			t.Fatalf("%s does not round-trip", s)
		}
	})
}

// FuzzJobTransitions applies arbitrary update sequences and checks that the
// fallback flag is sticky and the last update never moves backwards.
func FuzzJobTransitions(f *testing.F) {
	f.Add([]byte{0, 1, 2})
	f.Add([]byte{3, 3, 0})
	f.Add([]byte{4, 2, 1, 0})

	states := AllAgentStates()

	f.Fuzz(func(t *testing.T, ops []byte) {
		job := NewJob("job", "/wf.yaml", "model", "repo").WithFallbackSrc("fb.md")
		executed := false
		for _, op := range ops {
			prev := job.LastUpdate
			switch op % 5 {
			case 0:
				job = job.WithStatus(states[int(op)%len(states)])
			case 1:
				job = job.WithAgentID("agent")
			case 2:
				job = job.WithResult("r")
			case 3:
				job = job.WithFallbackExecuted(true)
				executed = true
			case 4:
				job = job.WithTimeoutMillis(int64(op) * 100)
			}
			if job.LastUpdate.Before(prev) {
				t.Fatal("last update moved backwards")
			}
			if executed && !job.FallbackExecuted {
				t.Fatal("fallback flag was reset")
			}
		}
		if err := job.Validate(); err != nil {
			t.Fatalf("job became invalid: %v", err)
		}
	})
}
