package alert

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/swap357/cirunner/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a console alert sink writing to stderr.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: os.Stderr}
}

// NewConsoleSinkTo creates a console alert sink writing to w.
func NewConsoleSinkTo(w io.Writer) *ConsoleSink {
	return &ConsoleSink{out: w}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes an alert with color-coded severity.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Level {
	case types.AlertLevelError:
		prefix = color.RedString("[ERROR]")
	case types.AlertLevelWarning:
		prefix = color.YellowString("[WARN]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	scope := alert.Pipeline
	if alert.Stage != "" {
		scope += "/" + alert.Stage
	}
	if scope != "" {
		_, err := fmt.Fprintf(s.out, "%s [%s] %s\n", prefix, scope, alert.Message)
		return err
	}
	_, err := fmt.Fprintf(s.out, "%s %s\n", prefix, alert.Message)
	return err
}
