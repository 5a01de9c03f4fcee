package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swap357/cirunner/internal/pipeline"
	"github.com/swap357/cirunner/pkg/types"
)

// NewStagesCmd creates the stages command.
func NewStagesCmd(g *Globals) *cobra.Command {
	var (
		po   planOptions
		list bool
	)

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Print the compiled stages of a pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if list {
				reg, err := newRegistry(cfg)
				if err != nil {
					return err
				}
				for _, name := range reg.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			plan, err := loadPlan(cfg, po)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	po.bind(cmd)
	cmd.Flags().BoolVar(&list, "list", false, "list available pipelines instead")
	return cmd
}

func printPlan(w io.Writer, plan *pipeline.Plan) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Pipeline: %s\n", plan.Name)
	for i, st := range plan.Stages {
		fmt.Fprintln(w)
		header := fmt.Sprintf("  %d. %s (%s)", i+1, st.Name, st.Kind)
		if st.Upstream != nil {
			header += fmt.Sprintf(" upstream=%s as %s", st.Upstream.Stage, st.Upstream.Input)
		}
		_, _ = bold.Fprintln(w, header)

		for _, t := range st.Targets {
			if st.Kind == types.StageDownload {
				fmt.Fprintf(w, "    %-36s -> %s\n", t.Key, t.Dest)
				continue
			}
			runner := ""
			if label := t.Platform.RunnerLabel(); label != "" {
				runner = " runner=" + label
			}
			fmt.Fprintf(w, "    %-36s %s %s@%s%s%s\n", t.Key, t.Ref.Workflow, t.Ref.Repo, t.Ref.Branch, formatInputs(st.Inputs), runner)
		}
	}
	fmt.Fprintln(w)
}

func formatInputs(inputs map[string]string) string {
	if len(inputs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + inputs[k]
	}
	return " [" + strings.Join(parts, " ") + "]"
}
