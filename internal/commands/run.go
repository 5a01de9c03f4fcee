package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/swap357/cirunner/internal/alert"
	"github.com/swap357/cirunner/internal/engine"
	"github.com/swap357/cirunner/internal/metrics"
	"github.com/swap357/cirunner/internal/secrets"
	"github.com/swap357/cirunner/internal/telemetry"
	"github.com/swap357/cirunner/internal/trigger"
	"github.com/swap357/cirunner/pkg/types"
)

// runDeps lets tests substitute the control plane.
type runDeps struct {
	newControlPlane func(cfg types.ControlPlaneConfig, token string, opts ...trigger.Option) (trigger.ControlPlane, error)
	getenv          func(string) string
}

// NewRunCmd creates the run command.
func NewRunCmd(g *Globals) *cobra.Command {
	return newRunCmd(g, runDeps{newControlPlane: trigger.New})
}

func newRunCmd(g *Globals, deps runDeps) *cobra.Command {
	var (
		plan  planOptions
		steps string
		reuse []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch, watch and download the selected pipeline stages",
		Long: `Run executes the selected stages in order. Stages whose run already
succeeded are reused, runs recorded as in progress are watched instead of
dispatched again, and a recorded failure stops the pipeline until it is
reset or replaced with --reuse-run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), cmd.ErrOrStderr(), g, deps, plan, steps, reuse)
		},
	}
	plan.bind(cmd)
	cmd.Flags().StringVar(&steps, "steps", "all", "comma-separated stages to run, or all")
	cmd.Flags().StringArrayVar(&reuse, "reuse-run", nil, "bind a stage key to an existing run as KEY:RUN_ID (repeatable)")
	return cmd
}

func runPipeline(ctx context.Context, stderr io.Writer, g *Globals, deps runDeps, po planOptions, steps string, reuse []string) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	invocation := newInvocationID()
	logger := newLogger(stderr, cfg.LogLevel, invocation)

	seeds := make([]types.Seed, 0, len(reuse))
	for _, r := range reuse {
		s, err := engine.ParseSeed(r)
		if err != nil {
			return err
		}
		seeds = append(seeds, s)
	}
	plan, err := loadPlan(cfg, po)
	if err != nil {
		return err
	}
	if _, err := engine.CheckInvocation(plan, steps, seeds); err != nil {
		return err
	}

	var resolverOpts []secrets.Option
	if deps.getenv != nil {
		resolverOpts = append(resolverOpts, secrets.WithGetenv(deps.getenv))
	}
	token, err := secrets.NewResolver(cfg.Credentials, resolverOpts...).Token(ctx)
	if err != nil {
		if errors.Is(err, secrets.ErrNoCredential) {
			return fmt.Errorf("%w: %v", engine.ErrConfig, err)
		}
		return fmt.Errorf("resolving credential: %w", err)
	}

	cp, err := deps.newControlPlane(cfg.ControlPlane, token, trigger.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}
	dispatcher, err := alert.NewDispatcher(cfg.Alerts, logger)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, "cirunner")
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	rec, err := metrics.New(tel.MeterProvider)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Stop(context.WithoutCancel(ctx)) }()

	eng := engine.New(store, cp,
		engine.WithLogger(logger),
		engine.WithAlertFunc(dispatcher.AlertFunc()),
		engine.WithResolvePolicy(cfg.Resolve),
		engine.WithTracer(tel.Tracer()),
		engine.WithMetrics(rec),
		engine.WithInvocation(plan.Name, invocation),
	)

	logger.Info("starting pipeline", "pipeline", plan.Name, "steps", steps, "store", cfg.Store.Type, "control_plane", cfg.ControlPlane.Type)
	return engine.NewOrchestrator(eng, plan).Run(ctx, steps, seeds)
}
