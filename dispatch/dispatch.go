package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"slipway/hub"
	"slipway/model"
	"slipway/saga"
	"slipway/store"
)

// Platform is the function execution platform: replace a target's code,
// then publish an immutable version of it.
type Platform interface {
	UpdateCode(ctx context.Context, function, packageURL string) error
	PublishVersion(ctx context.Context, function string) (string, error)
}

// ArtifactStore resolves a deployment package to something targets can
// fetch.
type ArtifactStore interface {
	StatArtifact(ctx context.Context, ref model.ArtifactReference) (int64, error)
	PackageURL(ctx context.Context, ref model.ArtifactReference, expiry time.Duration) (string, error)
}

// Dispatcher fans one deployment package out to a list of target functions.
// A Dispatcher holds only wiring and is safe to share across overlapping
// runs; all run state lives in the Handle.
type Dispatcher struct {
	Platform  Platform
	Artifacts ArtifactStore
	SagaStore saga.Store
	DB        *store.DB // optional
	WS        *hub.Hub  // optional
	URLExpiry time.Duration
}

// Handle is one invocation-scoped run, created queued and executed once.
type Handle struct {
	Run *model.Run

	d  *Dispatcher
	sg *saga.Saga
}

// NewRun records a queued run and returns its handle. The run ID is
// available immediately so callers can reply before executing.
func (d *Dispatcher) NewRun(ctx context.Context, artifact model.ArtifactReference, targets []string) *Handle {
	sg := saga.New(d.SagaStore, "", "dispatcher", "dispatch")

	run := &model.Run{
		ID:        uuid.New().String(),
		Artifact:  artifact,
		Targets:   targets,
		SagaID:    sg.ID,
		Status:    model.RunDispatching,
		StartedAt: time.Now(),
	}
	sg.Run = run.ID

	if d.DB != nil {
		if err := d.DB.InsertRun(ctx, run); err != nil {
			log.Printf("dispatch: insert run: %v", err)
		}
	}
	sg.Log(ctx, "run.start", fmt.Sprintf("dispatching %s to %d function(s)", artifact, len(targets)), nil)
	d.broadcast(hub.Event{Type: "run.queued", RunID: run.ID, Payload: map[string]interface{}{
		"artifact": artifact.String(),
		"targets":  targets,
	}})

	return &Handle{Run: run, d: d, sg: sg}
}

// Execute performs the fan-out and records the aggregate outcome. Exactly
// one RunResult is produced, after every target has resolved.
func (h *Handle) Execute(ctx context.Context) *model.RunResult {
	d := h.d
	run := h.Run
	targets := run.Targets

	result := d.dispatch(ctx, h.sg, run.ID, run.Artifact, targets)

	if result.Succeeded() {
		run.Status = model.RunSucceeded
		h.sg.Log(ctx, "run.complete", fmt.Sprintf("updated %d/%d functions", len(targets), len(targets)), nil)
		d.broadcast(hub.Event{Type: "dispatch.completed", RunID: run.ID, Payload: map[string]string{
			"artifact": run.Artifact.String(),
		}})
	} else {
		run.Status = model.RunFailed
		failed := result.Failed()
		h.sg.Log(ctx, "run.failed", fmt.Sprintf("%d/%d functions failed", len(failed), len(targets)), nil)
		d.broadcast(hub.Event{Type: "dispatch.failed", RunID: run.ID, Payload: map[string]interface{}{
			"failed": len(failed),
			"total":  len(targets),
		}})
	}
	if d.DB != nil {
		if err := d.DB.FinishRun(ctx, run.ID, run.Status, ""); err != nil {
			log.Printf("dispatch: finish run: %v", err)
		}
	}
	return result
}

// Run executes a full dispatch run synchronously.
func (d *Dispatcher) Run(ctx context.Context, artifact model.ArtifactReference, targets []string) (*model.RunResult, *model.Run) {
	h := d.NewRun(ctx, artifact, targets)
	result := h.Execute(ctx)
	return result, h.Run
}

// dispatch attempts every target in input order. A failing target never
// aborts the run: each target gets exactly one outcome, and the aggregate
// is materialized only after the loop finishes.
func (d *Dispatcher) dispatch(ctx context.Context, sg *saga.Saga, runID string, artifact model.ArtifactReference, targets []string) *model.RunResult {
	result := &model.RunResult{Artifact: artifact}

	packageURL, err := d.resolvePackage(ctx, artifact)
	if err != nil {
		// The package itself is unusable. Every target still gets an
		// outcome so the report names them all.
		sg.Log(ctx, "artifact.missing", err.Error(), nil)
		for _, target := range targets {
			result.Outcomes = append(result.Outcomes, model.UpdateOutcome{
				Target: target,
				Status: model.OutcomeFailure,
				Detail: err.Error(),
			})
		}
		return result
	}

	for _, target := range targets {
		sg.TargetStart(ctx, target)
		d.broadcast(hub.Event{Type: "dispatch.target", RunID: runID, Payload: map[string]string{
			"target": target,
			"status": "updating",
		}})

		start := time.Now()
		version, err := d.updateTarget(ctx, target, packageURL)
		elapsed := time.Since(start).Milliseconds()

		if err != nil {
			sg.TargetFailed(ctx, target, err)
			d.broadcast(hub.Event{Type: "dispatch.target", RunID: runID, Payload: map[string]string{
				"target": target,
				"status": "failed",
				"error":  err.Error(),
			}})
			result.Outcomes = append(result.Outcomes, model.UpdateOutcome{
				Target: target,
				Status: model.OutcomeFailure,
				Detail: err.Error(),
			})
			continue
		}

		sg.TargetUpdated(ctx, target, version, elapsed)
		d.broadcast(hub.Event{Type: "dispatch.target", RunID: runID, Payload: map[string]string{
			"target":  target,
			"status":  "updated",
			"version": version,
		}})
		result.Outcomes = append(result.Outcomes, model.UpdateOutcome{
			Target:  target,
			Status:  model.OutcomeSuccess,
			Version: version,
		})
	}
	return result
}

// updateTarget runs the update-then-publish sequence for one target.
func (d *Dispatcher) updateTarget(ctx context.Context, target, packageURL string) (string, error) {
	if err := d.Platform.UpdateCode(ctx, target, packageURL); err != nil {
		return "", fmt.Errorf("update code: %w", err)
	}
	version, err := d.Platform.PublishVersion(ctx, target)
	if err != nil {
		return "", fmt.Errorf("publish version: %w", err)
	}
	return version, nil
}

// resolvePackage verifies the artifact exists and turns it into a URL the
// platform's nodes can fetch. With no artifact store wired, the platform
// receives the plain bucket/key reference.
func (d *Dispatcher) resolvePackage(ctx context.Context, artifact model.ArtifactReference) (string, error) {
	if d.Artifacts == nil {
		return "s3://" + artifact.String(), nil
	}
	if _, err := d.Artifacts.StatArtifact(ctx, artifact); err != nil {
		return "", err
	}
	expiry := d.URLExpiry
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return d.Artifacts.PackageURL(ctx, artifact, expiry)
}

func (d *Dispatcher) broadcast(evt hub.Event) {
	if d.WS != nil {
		d.WS.Broadcast(evt)
	}
}
