package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/swap357/cirunner/internal/commands"
	"github.com/swap357/cirunner/internal/engine"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "cirunner",
		Short: "Resumable orchestration of multi-stage CI builds",
		Long: `cirunner dispatches CI workflows stage by stage across repositories and
platforms, waits for each run, and downloads the resulting artifacts. Progress
is recorded after every step, so an interrupted invocation resumes where it
stopped instead of dispatching again.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	g := commands.BindGlobals(root)
	root.AddCommand(
		commands.NewRunCmd(g),
		commands.NewStatusCmd(g),
		commands.NewResetCmd(g),
		commands.NewStagesCmd(g),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()

	code := engine.ExitCode(err)
	if code != 0 {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(code)
}
