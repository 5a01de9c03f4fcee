package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swap357/cirunner/internal/pipeline"
	"github.com/swap357/cirunner/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(g *Globals) *cobra.Command {
	var po planOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recorded run of every stage key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), g, po)
		},
	}
	po.bind(cmd)
	return cmd
}

func runStatus(ctx context.Context, w io.Writer, g *Globals, po planOptions) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	plan, err := loadPlan(cfg, po)
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

	doc, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	printStatus(w, plan, doc)
	return nil
}

func printStatus(w io.Writer, plan *pipeline.Plan, doc types.StateDocument) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Pipeline: %s\n", plan.Name)

	planned := make(map[string]bool)
	for _, st := range plan.Stages {
		if st.Kind != types.StageBuild {
			continue
		}
		fmt.Fprintln(w)
		_, _ = bold.Fprintf(w, "  %s\n", st.Name)
		for _, t := range st.Targets {
			planned[t.Key] = true
			printRecord(w, t.Key, doc[t.Key])
		}
	}

	var other []string
	for key := range doc {
		if !planned[key] {
			other = append(other, key)
		}
	}
	if len(other) > 0 {
		sort.Strings(other)
		fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "  Other recorded keys:")
		for _, key := range other {
			printRecord(w, key, doc[key])
		}
	}
	fmt.Fprintln(w)
}

func printRecord(w io.Writer, key string, rec types.StageRecord) {
	status := rec.Status()
	label := fmt.Sprintf("%-10s", status)
	switch status {
	case types.StageSucceeded:
		label = color.GreenString(label)
	case types.StageFailed:
		label = color.RedString(label)
	case types.StageDispatched:
		label = color.CyanString(label)
	default:
		label = color.YellowString(label)
	}

	line := fmt.Sprintf("    %-36s %s", key, label)
	if rec.HasRun() {
		line += fmt.Sprintf(" run=%d", rec.RunID)
	}
	if rec.Conclusion != "" {
		line += fmt.Sprintf(" conclusion=%s", rec.Conclusion)
	}
	fmt.Fprintln(w, line)
}
