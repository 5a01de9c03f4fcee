package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/swap357/cirunner/internal/engine"
	"github.com/swap357/cirunner/internal/pipeline"
	"github.com/swap357/cirunner/pkg/types"
)

// NewResetCmd creates the reset command.
func NewResetCmd(g *Globals) *cobra.Command {
	var po planOptions

	cmd := &cobra.Command{
		Use:   "reset STAGE_OR_KEY...",
		Short: "Clear recorded runs so the next run dispatches again",
		Long: `Reset removes the records of the named stage keys. A stage name selects
every key of that stage, so "reset numba_conda" clears all of its platforms.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.Context(), cmd.OutOrStdout(), g, po, args)
		},
	}
	po.bind(cmd)
	return cmd
}

func runReset(ctx context.Context, w io.Writer, g *Globals, po planOptions, args []string) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	plan, err := loadPlan(cfg, po)
	if err != nil {
		return err
	}
	keys, err := resetKeys(plan, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Stop(ctx) }()

	eng := engine.New(store, nil, engine.WithLogger(newLogger(io.Discard, cfg.LogLevel, newInvocationID())))
	removed, err := eng.Reset(ctx, keys)
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Fprintln(w, "Nothing to reset.")
		return nil
	}
	for _, k := range removed {
		fmt.Fprintf(w, "reset %s\n", k)
	}
	return nil
}

// resetKeys expands stage names into their keys. Keys outside the plan are
// accepted so records left by other pipelines can be cleared.
func resetKeys(plan *pipeline.Plan, args []string) ([]string, error) {
	var keys []string
	for _, arg := range args {
		if st, ok := plan.Stage(arg); ok {
			if st.Kind != types.StageBuild {
				return nil, fmt.Errorf("%w: %s is a download stage and has no records", engine.ErrConfig, arg)
			}
			for _, t := range st.Targets {
				keys = append(keys, t.Key)
			}
			continue
		}
		keys = append(keys, arg)
	}
	return keys, nil
}
