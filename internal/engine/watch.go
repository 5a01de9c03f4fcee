package engine

import (
	"context"
	"fmt"

	"github.com/swap357/cirunner/internal/lifecycle"
	"github.com/swap357/cirunner/internal/metrics"
	"github.com/swap357/cirunner/internal/trigger"
	"github.com/swap357/cirunner/pkg/types"
)

// WaitForTerminal blocks until the run bound to key finishes and records its
// conclusion. Keys without a run are skipped; finished records are answered
// from state. Interruption leaves the record untouched.
func (e *Engine) WaitForTerminal(ctx context.Context, key, repo string) error {
	rec, err := e.record(ctx, key)
	if err != nil {
		return err
	}

	switch rec.Status() {
	case types.StageAbsent:
		e.logger.Warn("no run recorded, nothing to wait for", "stage", key)
		return nil
	case types.StageSucceeded:
		e.logger.Info("run already succeeded", "stage", key, "run_id", rec.RunID)
		return nil
	case types.StageFailed:
		return &RunFailedError{Stage: key, RunID: rec.RunID, Conclusion: rec.Conclusion}
	}

	ctx, span := e.startSpan(ctx, "cirunner.wait", key, rec.RunID)
	conclusion, err := e.watch(ctx, key, repo, rec.RunID)
	if err != nil {
		endSpan(span, err)
		return err
	}

	status := lifecycle.Resolved(conclusion)
	if err := lifecycle.Transition(rec.Status(), status); err != nil {
		endSpan(span, err)
		return fmt.Errorf("stage %s: %w", key, err)
	}
	rec.Completed = true
	rec.Conclusion = conclusion
	if err := e.put(ctx, key, rec); err != nil {
		endSpan(span, err)
		return err
	}
	metrics.Inc(ctx, e.metrics.Waits, key)

	if status == types.StageFailed {
		metrics.Inc(ctx, e.metrics.RunFailures, key)
		err := &RunFailedError{Stage: key, RunID: rec.RunID, Conclusion: conclusion}
		e.logger.Error("run did not succeed", "stage", key, "repo", repo, "run_id", rec.RunID, "conclusion", conclusion)
		endSpan(span, err)
		return err
	}

	e.logger.Info("run succeeded", "stage", key, "repo", repo, "run_id", rec.RunID)
	endSpan(span, nil)
	return nil
}

func (e *Engine) watch(ctx context.Context, key, repo string, runID int64) (types.Conclusion, error) {
	e.logger.Info("waiting for run", "stage", key, "repo", repo, "run_id", runID)
	if err := e.cp.WatchUntilTerminal(ctx, repo, runID); err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx, fmt.Sprintf("waiting for %s (run %d)", key, runID))
		}
		e.logger.Error("watch failed", "stage", key, "run_id", runID, "category", trigger.ClassifyFailure(err), "error", err)
		return "", fmt.Errorf("stage %s: watching run %d: %w", key, runID, err)
	}

	conclusion, err := e.cp.GetConclusion(ctx, repo, runID)
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx, fmt.Sprintf("waiting for %s (run %d)", key, runID))
		}
		return "", fmt.Errorf("stage %s: %w", key, err)
	}
	if conclusion == "" {
		return "", fmt.Errorf("stage %s: run %d reported no conclusion", key, runID)
	}
	return conclusion, nil
}
