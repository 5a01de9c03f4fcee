package engine

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/swap357/cirunner/internal/lifecycle"
	"github.com/swap357/cirunner/internal/metrics"
	"github.com/swap357/cirunner/internal/trigger"
	"github.com/swap357/cirunner/internal/watcher"
	"github.com/swap357/cirunner/pkg/types"
)

// resolveListLimit is how many recent runs are inspected per resolve attempt.
const resolveListLimit = 5

// DispatchOrReuse returns the run bound to key, dispatching the workflow only
// when no run is recorded. A successful or still-running record is reused
// as is; a failed one is reported without dispatching until it is reset.
func (e *Engine) DispatchOrReuse(ctx context.Context, key string, ref types.WorkflowRef, inputs map[string]string) (int64, error) {
	rec, err := e.record(ctx, key)
	if err != nil {
		return 0, err
	}

	switch rec.Status() {
	case types.StageSucceeded:
		e.logger.Info("reusing successful run", "stage", key, "run_id", rec.RunID)
		metrics.Inc(ctx, e.metrics.Reuses, key)
		return rec.RunID, nil
	case types.StageDispatched:
		e.logger.Info("resuming recorded run", "stage", key, "run_id", rec.RunID)
		metrics.Inc(ctx, e.metrics.Resumes, key)
		return rec.RunID, nil
	case types.StageFailed:
		return 0, &RunFailedError{Stage: key, RunID: rec.RunID, Conclusion: rec.Conclusion}
	}
	if err := lifecycle.Transition(rec.Status(), types.StageDispatched); err != nil {
		return 0, fmt.Errorf("stage %s: %w", key, err)
	}

	ctx, span := e.startSpan(ctx, "cirunner.dispatch", key, 0)
	runID, err := e.dispatch(ctx, key, ref, inputs)
	endSpan(span, err)
	if err != nil {
		return 0, err
	}

	if err := e.put(ctx, key, types.StageRecord{RunID: runID}); err != nil {
		return 0, err
	}
	metrics.Inc(ctx, e.metrics.Dispatches, key)
	e.logger.Info("dispatched workflow", "stage", key, "repo", ref.Repo, "workflow", ref.Workflow, "branch", ref.Branch, "run_id", runID)
	return runID, nil
}

func (e *Engine) dispatch(ctx context.Context, key string, ref types.WorkflowRef, inputs map[string]string) (int64, error) {
	dispatchedAt := e.now()
	resp, err := e.cp.Dispatch(ctx, trigger.DispatchRequest{
		Repo:     ref.Repo,
		Workflow: ref.Workflow,
		Branch:   ref.Branch,
		Inputs:   maps.Clone(inputs),
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, cancelled(ctx, "dispatching "+key)
		}
		e.logger.Error("dispatch failed", "stage", key, "category", trigger.ClassifyFailure(err), "error", err)
		return 0, fmt.Errorf("stage %s: %w", key, err)
	}

	if resp.RunID > 0 {
		return resp.RunID, nil
	}
	if id, ok := trigger.ParseRunID(resp.Output); ok {
		return id, nil
	}
	e.logger.Info("dispatch did not report a run, listing recent runs", "stage", key, "workflow", ref.Workflow)
	return e.resolveRunID(ctx, key, ref, dispatchedAt)
}

// resolveRunID polls recent runs of the workflow for the newest one created
// no earlier than the dispatch (less the clock skew) that no other stage
// key already owns.
func (e *Engine) resolveRunID(ctx context.Context, key string, ref types.WorkflowRef, dispatchedAt time.Time) (int64, error) {
	doc, err := e.State(ctx)
	if err != nil {
		return 0, err
	}
	owned := make(map[int64]bool, len(doc))
	for _, rec := range doc {
		if rec.HasRun() {
			owned[rec.RunID] = true
		}
	}
	earliest := dispatchedAt.Add(-e.skew)

	for attempt := 1; attempt <= e.resolve.MaxAttempts; attempt++ {
		if err := e.sleep(ctx, watcher.CalculateBackoff(e.resolve, attempt)); err != nil {
			return 0, cancelled(ctx, "resolving run for "+key)
		}
		metrics.Inc(ctx, e.metrics.ResolveAttempts, key)

		runs, err := e.cp.ListRecentRuns(ctx, ref.Repo, ref.Workflow, ref.Branch, resolveListLimit)
		if err != nil {
			if ctx.Err() != nil {
				return 0, cancelled(ctx, "resolving run for "+key)
			}
			if trigger.ClassifyFailure(err) == types.FailurePermanent {
				return 0, fmt.Errorf("stage %s: %w", key, err)
			}
			e.logger.Warn("listing runs failed", "stage", key, "attempt", attempt, "error", err)
			continue
		}

		var best trigger.RunSummary
		for _, r := range runs {
			if r.ID <= 0 || owned[r.ID] || r.CreatedAt.Before(earliest) {
				continue
			}
			if best.ID == 0 || r.CreatedAt.After(best.CreatedAt) {
				best = r
			}
		}
		if best.ID > 0 {
			e.logger.Info("resolved dispatched run", "stage", key, "run_id", best.ID, "attempt", attempt)
			return best.ID, nil
		}
		e.logger.Debug("dispatched run not listed yet", "stage", key, "attempt", attempt)
	}

	return 0, fmt.Errorf("%w: %s (%s on %s@%s) after %d attempts",
		ErrDispatchUnresolved, key, ref.Workflow, ref.Repo, ref.Branch, e.resolve.MaxAttempts)
}
