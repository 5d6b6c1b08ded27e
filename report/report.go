package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"slipway/model"
)

const (
	JobSuccess = "JobSuccessResult"
	JobFailure = "JobFailureResult"
)

// TerminalSignal is the single success/failure report the orchestrator
// waits on for a run to be considered complete.
type TerminalSignal struct {
	RunID   string `json:"runId,omitempty"`
	Result  string `json:"result"` // JobSuccessResult or JobFailureResult
	Message string `json:"message"`
}

// FromResult converts an aggregate run result into a terminal signal. A
// failure message enumerates every failed target with its detail, in input
// order, so operators can diagnose from the signal alone.
func FromResult(result *model.RunResult) TerminalSignal {
	if result.Succeeded() {
		n := len(result.Outcomes)
		return TerminalSignal{
			Result:  JobSuccess,
			Message: fmt.Sprintf("Updated %d/%d functions.", n, n),
		}
	}

	var parts []string
	for _, o := range result.Failed() {
		parts = append(parts, o.Target+": "+o.Detail)
	}
	return TerminalSignal{
		Result:  JobFailure,
		Message: strings.Join(parts, "; "),
	}
}

// ConfigFailure is the terminal signal for a run aborted before dispatch by
// a malformed invocation input.
func ConfigFailure(err error) TerminalSignal {
	return TerminalSignal{Result: JobFailure, Message: err.Error()}
}

// Reporter delivers one terminal signal to the orchestrator callback. A
// Reporter is created per run; delivering twice is a programming error and
// is refused, because the orchestrator accepts exactly one signal per run.
type Reporter struct {
	URL    string
	Token  string
	Client *http.Client

	mu        sync.Mutex
	delivered bool
}

func NewReporter(url, token string) *Reporter {
	return &Reporter{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Deliver posts the terminal signal. Any error here is fatal to the
// invocation: a missing signal is indistinguishable from a hang to the
// orchestrator, so the caller must propagate it to its top-level failure
// channel.
func (r *Reporter) Deliver(ctx context.Context, sig TerminalSignal) error {
	r.mu.Lock()
	if r.delivered {
		r.mu.Unlock()
		return fmt.Errorf("report: terminal signal already delivered for this run")
	}
	r.delivered = true
	r.mu.Unlock()

	body, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("report: encode signal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("report: deliver signal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report: orchestrator rejected signal: %s", resp.Status)
	}
	return nil
}
