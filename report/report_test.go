package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"slipway/model"
)

func TestFromResult_Success(t *testing.T) {
	result := &model.RunResult{Outcomes: []model.UpdateOutcome{
		{Target: "fnA", Status: model.OutcomeSuccess},
		{Target: "fnB", Status: model.OutcomeSuccess},
	}}

	sig := FromResult(result)
	if sig.Result != JobSuccess {
		t.Errorf("Result = %q, want %q", sig.Result, JobSuccess)
	}
	if sig.Message != "Updated 2/2 functions." {
		t.Errorf("Message = %q", sig.Message)
	}
}

func TestFromResult_Failure(t *testing.T) {
	result := &model.RunResult{Outcomes: []model.UpdateOutcome{
		{Target: "fnA", Status: model.OutcomeSuccess},
		{Target: "fnB", Status: model.OutcomeFailure, Detail: "publish timed out"},
	}}

	sig := FromResult(result)
	if sig.Result != JobFailure {
		t.Errorf("Result = %q, want %q", sig.Result, JobFailure)
	}
	if sig.Message != "fnB: publish timed out" {
		t.Errorf("Message = %q", sig.Message)
	}
}

func TestFromResult_FailureEnumeratesInOrder(t *testing.T) {
	result := &model.RunResult{Outcomes: []model.UpdateOutcome{
		{Target: "fnA", Status: model.OutcomeFailure, Detail: "missing function"},
		{Target: "fnB", Status: model.OutcomeSuccess},
		{Target: "fnC", Status: model.OutcomeFailure, Detail: "throttled"},
	}}

	sig := FromResult(result)
	if sig.Message != "fnA: missing function; fnC: throttled" {
		t.Errorf("Message = %q", sig.Message)
	}
}

func TestDeliver(t *testing.T) {
	var got TerminalSignal
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReporter(srv.URL, "secret")
	sig := TerminalSignal{RunID: "run-1", Result: JobSuccess, Message: "Updated 1/1 functions."}
	if err := r.Deliver(context.Background(), sig); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got.Result != JobSuccess || got.RunID != "run-1" {
		t.Errorf("orchestrator received %+v", got)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestDeliver_ExactlyOnce(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	r := NewReporter(srv.URL, "")
	sig := TerminalSignal{Result: JobSuccess, Message: "ok"}
	if err := r.Deliver(context.Background(), sig); err != nil {
		t.Fatalf("first Deliver: %v", err)
	}
	if err := r.Deliver(context.Background(), sig); err == nil {
		t.Error("second Deliver should be refused")
	}
	if calls != 1 {
		t.Errorf("orchestrator called %d times, want 1", calls)
	}
}

func TestDeliver_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such job", http.StatusConflict)
	}))
	defer srv.Close()

	r := NewReporter(srv.URL, "")
	err := r.Deliver(context.Background(), TerminalSignal{Result: JobFailure, Message: "x"})
	if err == nil {
		t.Error("rejected signal should be an error")
	}
}

func TestDeliver_Unreachable(t *testing.T) {
	r := NewReporter("http://127.0.0.1:1/jobs", "")
	err := r.Deliver(context.Background(), TerminalSignal{Result: JobSuccess, Message: "ok"})
	if err == nil {
		t.Error("unreachable orchestrator should be an error")
	}
}
