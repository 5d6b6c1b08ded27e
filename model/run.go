package model

import "time"

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

type RunStatus string

const (
	RunQueued      RunStatus = "queued"
	RunDispatching RunStatus = "dispatching"
	RunSucceeded   RunStatus = "succeeded"
	RunFailed      RunStatus = "failed"
)

// ArtifactReference identifies exactly one deployment package in the
// artifact store. Immutable once constructed.
type ArtifactReference struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func NewArtifactReference(bucket, key string) (ArtifactReference, error) {
	if bucket == "" {
		return ArtifactReference{}, &ConfigError{Field: "DEPLOYMENT_PACKAGE_BUCKET", Reason: "bucket name is empty"}
	}
	if key == "" {
		return ArtifactReference{}, &ConfigError{Field: "DEPLOYMENT_PACKAGE_KEY", Reason: "object key is empty"}
	}
	return ArtifactReference{Bucket: bucket, Key: key}, nil
}

func (a ArtifactReference) String() string {
	return a.Bucket + "/" + a.Key
}

// UpdateOutcome records the result of one target's update+publish attempt.
type UpdateOutcome struct {
	Target  string        `json:"target"`
	Status  OutcomeStatus `json:"status"`
	Version string        `json:"version,omitempty"` // published version pointer, on success
	Detail  string        `json:"detail,omitempty"`  // failure reason, on failure
}

// RunResult aggregates the outcomes of a single dispatch run. Created fresh
// per invocation and consumed exactly once by the reporter.
type RunResult struct {
	Artifact ArtifactReference `json:"artifact"`
	Outcomes []UpdateOutcome   `json:"outcomes"`
}

// Succeeded reports whether every target's outcome is success. An empty
// outcome list counts as success (no-op run).
func (r *RunResult) Succeeded() bool {
	for _, o := range r.Outcomes {
		if o.Status != OutcomeSuccess {
			return false
		}
	}
	return true
}

// Failed returns the failure outcomes in input order.
func (r *RunResult) Failed() []UpdateOutcome {
	var failed []UpdateOutcome
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailure {
			failed = append(failed, o)
		}
	}
	return failed
}

// Run is the persisted record of one dispatch run.
type Run struct {
	ID         string            `json:"id"`
	Artifact   ArtifactReference `json:"artifact"`
	Targets    []string          `json:"targets"`
	SagaID     string            `json:"sagaId"`
	Status     RunStatus         `json:"status"`
	Message    string            `json:"message,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
}
