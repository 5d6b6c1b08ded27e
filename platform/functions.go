package platform

import (
	"context"
	"fmt"
	"strconv"
	"time"

	nomadapi "github.com/hashicorp/nomad/api"
)

// UpdateCode points the target function's job at a new deployment package
// URL and re-registers it, then blocks until the scheduler accepts the
// evaluation. Acceptance is synchronous acknowledgement, not convergence of
// the running allocations.
func (c *Client) UpdateCode(ctx context.Context, function, packageURL string) error {
	job, _, err := c.api.Jobs().Info(function, nil)
	if err != nil {
		return fmt.Errorf("lookup function %s: %w", function, err)
	}

	if !rewriteArtifact(job, packageURL) {
		return fmt.Errorf("function %s has no code artifact to update", function)
	}

	resp, _, err := c.api.Jobs().Register(job, nil)
	if err != nil {
		return fmt.Errorf("update function %s: %w", function, err)
	}

	if err := c.waitEval(ctx, resp.EvalID); err != nil {
		return fmt.Errorf("update function %s: %w", function, err)
	}
	return nil
}

// PublishVersion reads back the function's new immutable version index.
// Nomad keeps every registered job version; the index is a stable pointer
// usable for rollback even after later updates.
func (c *Client) PublishVersion(ctx context.Context, function string) (string, error) {
	versions, _, _, err := c.api.Jobs().Versions(function, false, nil)
	if err != nil {
		return "", fmt.Errorf("publish version for %s: %w", function, err)
	}
	if len(versions) == 0 || versions[0].Version == nil {
		return "", fmt.Errorf("publish version for %s: no versions recorded", function)
	}
	// Versions are returned newest first.
	return strconv.FormatUint(*versions[0].Version, 10), nil
}

// rewriteArtifact sets every task artifact's getter source to the new
// package URL. Returns false if the job carries no artifacts at all.
func rewriteArtifact(job *nomadapi.Job, packageURL string) bool {
	found := false
	for _, tg := range job.TaskGroups {
		for _, task := range tg.Tasks {
			for _, art := range task.Artifacts {
				art.GetterSource = &packageURL
				found = true
			}
		}
	}
	return found
}

// maxEvalErrors is how many consecutive Info failures we tolerate before
// giving up on an evaluation.
const maxEvalErrors = 5

// waitEval polls the evaluation until the scheduler reports a terminal
// status. The wait is bounded: a non-terminal evaluation past the
// configured timeout, or a persistently erroring API, fails the target
// rather than hanging the run.
func (c *Client) waitEval(ctx context.Context, evalID string) error {
	deadline := time.After(c.evalTimeout)
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	errs := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("evaluation %s not accepted within %s", evalID, c.evalTimeout)
		case <-ticker.C:
			eval, _, err := c.api.Evaluations().Info(evalID, nil)
			if err != nil {
				errs++
				if errs >= maxEvalErrors {
					return fmt.Errorf("evaluation %s status: %w", evalID, err)
				}
				continue
			}
			errs = 0
			switch eval.Status {
			case "complete":
				return nil
			case "failed", "canceled":
				return fmt.Errorf("evaluation %s %s: %s", evalID, eval.Status, eval.StatusDescription)
			}
		}
	}
}
