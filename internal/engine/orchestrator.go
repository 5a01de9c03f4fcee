package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/swap357/cirunner/internal/pipeline"
	"github.com/swap357/cirunner/pkg/types"
)

// Orchestrator runs the selected stages of a compiled plan in order.
type Orchestrator struct {
	engine *Engine
	plan   *pipeline.Plan
}

// NewOrchestrator creates an orchestrator for plan.
func NewOrchestrator(e *Engine, plan *pipeline.Plan) *Orchestrator {
	return &Orchestrator{engine: e, plan: plan}
}

// Run seeds the given runs, then executes the stages named by steps. It
// stops at the first error; stages after it are not started.
func (o *Orchestrator) Run(ctx context.Context, steps string, seeds []types.Seed) error {
	err := o.run(ctx, steps, seeds)
	o.report(ctx, err)
	return err
}

// CheckInvocation resolves steps against plan and checks that every seed
// names one of its stage keys. It touches no state, so callers can reject a
// bad invocation before opening stores or sinks. Errors wrap ErrConfig.
func CheckInvocation(plan *pipeline.Plan, steps string, seeds []types.Seed) ([]pipeline.Stage, error) {
	stages, err := plan.SelectSteps(steps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	for _, s := range seeds {
		if _, ok := plan.Target(s.StageKey); !ok {
			return nil, fmt.Errorf("%w: --reuse-run names unknown stage key %q (valid: %v)", ErrConfig, s.StageKey, plan.Keys())
		}
	}
	return stages, nil
}

func (o *Orchestrator) run(ctx context.Context, steps string, seeds []types.Seed) error {
	stages, err := CheckInvocation(o.plan, steps, seeds)
	if err != nil {
		return err
	}
	if err := o.engine.Seed(ctx, seeds); err != nil {
		return err
	}

	for _, st := range stages {
		o.engine.logger.Info("starting stage", "stage", st.Name, "kind", st.Kind, "targets", len(st.Targets))
		switch st.Kind {
		case types.StageBuild:
			err = o.runBuild(ctx, st)
		case types.StageDownload:
			err = o.runDownload(ctx, st)
		default:
			err = fmt.Errorf("%w: stage %s has unknown kind %q", ErrConfig, st.Name, st.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// runBuild dispatches every target first and then waits on each in order.
func (o *Orchestrator) runBuild(ctx context.Context, st pipeline.Stage) error {
	inputs, err := o.stageInputs(ctx, st)
	if err != nil {
		return err
	}

	for _, t := range st.Targets {
		if _, err := o.engine.DispatchOrReuse(ctx, t.Key, t.Ref, inputs); err != nil {
			return err
		}
	}
	for _, t := range st.Targets {
		if err := o.engine.WaitForTerminal(ctx, t.Key, t.Ref.Repo); err != nil {
			return err
		}
	}
	return nil
}

// stageInputs adds the upstream run id only when the upstream stage finished
// with success; otherwise the input is left out entirely.
func (o *Orchestrator) stageInputs(ctx context.Context, st pipeline.Stage) (map[string]string, error) {
	inputs := maps.Clone(st.Inputs)
	if inputs == nil {
		inputs = map[string]string{}
	}
	if st.Upstream == nil {
		return inputs, nil
	}

	doc, err := o.engine.State(ctx)
	if err != nil {
		return nil, err
	}
	up := doc[st.Upstream.Stage]
	if up.Succeeded() {
		inputs[st.Upstream.Input] = strconv.FormatInt(up.RunID, 10)
		o.engine.logger.Info("using upstream run", "stage", st.Name, "upstream", st.Upstream.Stage, "input", st.Upstream.Input, "run_id", up.RunID)
	} else {
		o.engine.logger.Info("upstream has no successful run, input omitted", "stage", st.Name, "upstream", st.Upstream.Stage)
	}
	return inputs, nil
}

func (o *Orchestrator) runDownload(ctx context.Context, st pipeline.Stage) error {
	for _, t := range st.Targets {
		if err := o.engine.Download(ctx, t.Key, t.Ref.Repo, t.Dest); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) report(ctx context.Context, err error) {
	switch {
	case err == nil:
		o.engine.fireAlert(ctx, types.Alert{Level: types.AlertLevelInfo, Message: "pipeline completed"})
	case errors.Is(err, ErrConfig):
		o.engine.logger.Error("invalid invocation", "error", err)
	case errors.Is(err, ErrCancelled):
		o.engine.logger.Info("interrupted by user; exiting")
		o.engine.fireAlert(ctx, types.Alert{Level: types.AlertLevelWarning, Message: err.Error()})
	default:
		alert := types.Alert{Level: types.AlertLevelError, Message: err.Error()}
		var rf *RunFailedError
		if errors.As(err, &rf) {
			alert.Stage = rf.Stage
			alert.RunID = rf.RunID
		}
		o.engine.fireAlert(ctx, alert)
	}
}
