package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	nomadapi "github.com/hashicorp/nomad/api"
)

// evalServer fakes the Nomad evaluation endpoint.
func evalServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeEval(w http.ResponseWriter, eval *nomadapi.Evaluation) {
	w.Header().Set("X-Nomad-Index", "1")
	w.Header().Set("X-Nomad-LastContact", "0")
	w.Header().Set("X-Nomad-KnownLeader", "true")
	json.NewEncoder(w).Encode(eval)
}

func newTestClient(t *testing.T, addr string, evalTimeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{Addr: addr, EvalTimeout: evalTimeout})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.poll = 5 * time.Millisecond
	return c
}

func TestWaitEval_Complete(t *testing.T) {
	srv := evalServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEval(w, &nomadapi.Evaluation{ID: "e1", Status: "complete"})
	})
	c := newTestClient(t, srv.URL, time.Second)

	if err := c.waitEval(context.Background(), "e1"); err != nil {
		t.Errorf("waitEval: %v", err)
	}
}

func TestWaitEval_Failed(t *testing.T) {
	srv := evalServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEval(w, &nomadapi.Evaluation{ID: "e1", Status: "failed", StatusDescription: "no nodes"})
	})
	c := newTestClient(t, srv.URL, time.Second)

	err := c.waitEval(context.Background(), "e1")
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Errorf("waitEval = %v, want failed status error", err)
	}
}

func TestWaitEval_NonTerminalTimesOut(t *testing.T) {
	srv := evalServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEval(w, &nomadapi.Evaluation{ID: "e1", Status: "pending"})
	})
	c := newTestClient(t, srv.URL, 50*time.Millisecond)

	err := c.waitEval(context.Background(), "e1")
	if err == nil || !strings.Contains(err.Error(), "not accepted within") {
		t.Errorf("waitEval = %v, want timeout error", err)
	}
}

func TestWaitEval_PersistentErrorsGiveUp(t *testing.T) {
	calls := 0
	srv := evalServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "eval gone", http.StatusInternalServerError)
	})
	// Timeout far beyond the error budget: the error path must exit first.
	c := newTestClient(t, srv.URL, 10*time.Second)

	start := time.Now()
	err := c.waitEval(context.Background(), "e1")
	if err == nil {
		t.Fatal("waitEval should give up on persistent errors")
	}
	if calls < maxEvalErrors {
		t.Errorf("gave up after %d calls, want at least %d", calls, maxEvalErrors)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("error exhaustion should not wait out the full timeout")
	}
}

func TestWaitEval_ContextCanceled(t *testing.T) {
	srv := evalServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEval(w, &nomadapi.Evaluation{ID: "e1", Status: "pending"})
	})
	c := newTestClient(t, srv.URL, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := c.waitEval(ctx, "e1"); err == nil {
		t.Error("waitEval should return the context error")
	}
}

func TestRewriteArtifact(t *testing.T) {
	old := "https://store.local/v41.zip"
	job := &nomadapi.Job{
		TaskGroups: []*nomadapi.TaskGroup{{
			Tasks: []*nomadapi.Task{{
				Artifacts: []*nomadapi.TaskArtifact{{GetterSource: &old}},
			}},
		}},
	}

	if !rewriteArtifact(job, "https://store.local/v42.zip") {
		t.Fatal("rewriteArtifact should find the artifact")
	}
	got := *job.TaskGroups[0].Tasks[0].Artifacts[0].GetterSource
	if got != "https://store.local/v42.zip" {
		t.Errorf("GetterSource = %q", got)
	}
}

func TestRewriteArtifact_NoArtifacts(t *testing.T) {
	job := &nomadapi.Job{
		TaskGroups: []*nomadapi.TaskGroup{{
			Tasks: []*nomadapi.Task{{}},
		}},
	}
	if rewriteArtifact(job, "https://store.local/v42.zip") {
		t.Error("rewriteArtifact should report no artifacts")
	}
}
