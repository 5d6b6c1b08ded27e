package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"slipway/model"
	"slipway/report"
)

type dispatchRequest struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Targets     string `json:"targets"` // comma-separated, same grammar as FUNCTIONS_TO_DEPLOY
	JobID       string `json:"jobId,omitempty"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// Dispatch is the pipeline-facing trigger. The orchestrator posts an
// HMAC-signed request naming the package and targets; the run itself
// executes in the background and reports through the terminal signal
// callback.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	secret := h.cfg.WebhookSecret
	if secret == "" {
		writeError(w, http.StatusInternalServerError, "webhook secret not configured")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if !verifySignature(body, secret, r.Header.Get("X-Slipway-Signature")) {
		writeError(w, http.StatusForbidden, "invalid signature")
		return
	}

	var req dispatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	artifact, err := model.NewArtifactReference(req.Bucket, req.Key)
	if err == nil {
		var targets []string
		targets, err = model.ParseTargets(req.Targets)
		if err == nil {
			runID := h.startRun(artifact, targets, req.JobID, req.CallbackURL)
			writeJSON(w, map[string]string{
				"runId":  runID,
				"status": "dispatching",
			})
			return
		}
	}

	// Malformed invocation input: refuse the run, but still send the
	// orchestrator its failure signal so it does not wait out the timeout.
	var cfgErr *model.ConfigError
	if errors.As(err, &cfgErr) {
		go h.reportConfigFailure(req, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// startRun launches one invocation-scoped dispatch run in the background
// and returns its ID right away.
func (h *Handler) startRun(artifact model.ArtifactReference, targets []string, jobID, callbackURL string) string {
	ctx := context.Background()
	handle := h.dispatcher.NewRun(ctx, artifact, targets)

	go func() {
		result := handle.Execute(ctx)
		run := handle.Run

		sig := report.FromResult(result)
		sig.RunID = run.ID
		if jobID != "" {
			sig.RunID = jobID
		}
		if err := h.deliver(ctx, sig, callbackURL); err != nil {
			log.Printf("dispatch %s: %v", run.ID, err)
			if h.db != nil {
				h.db.FinishRun(ctx, run.ID, model.RunFailed, err.Error())
			}
			return
		}
		if h.db != nil {
			h.db.FinishRun(ctx, run.ID, run.Status, sig.Message)
		}
	}()
	return handle.Run.ID
}

func (h *Handler) reportConfigFailure(req dispatchRequest, cause error) {
	ctx := context.Background()
	sig := report.ConfigFailure(cause)
	sig.RunID = req.JobID
	if err := h.deliver(ctx, sig, req.CallbackURL); err != nil {
		log.Printf("dispatch: config failure report: %v", err)
	}
}

func (h *Handler) deliver(ctx context.Context, sig report.TerminalSignal, callbackURL string) error {
	if callbackURL == "" {
		var err error
		callbackURL, err = report.ResolveURL(h.cfg.OrchestratorURL, h.cfg.OrchestratorService, h.consul)
		if err != nil {
			return err
		}
	}
	rep := report.NewReporter(callbackURL, h.cfg.OrchestratorToken)
	return rep.Deliver(ctx, sig)
}

func verifySignature(body []byte, secret, sigHeader string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sigHeader), []byte(expected))
}
