package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/swap357/cirunner/pkg/types"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	// ErrConfig marks invalid invocation input: missing credential,
	// malformed seed, unknown stage or key.
	ErrConfig = errors.New("configuration error")
	// ErrDispatchUnresolved means a dispatch was accepted but its run could
	// not be identified within the resolve budget.
	ErrDispatchUnresolved = errors.New("dispatched run could not be resolved")
	// ErrRunFailed matches every *RunFailedError.
	ErrRunFailed = errors.New("run failed")
	// ErrNothingToDownload means the stage has no successful run to fetch from.
	ErrNothingToDownload = errors.New("nothing to download")
	// ErrCancelled means the invocation was interrupted.
	ErrCancelled = errors.New("cancelled")
)

// RunFailedError reports a run that concluded without success.
type RunFailedError struct {
	Stage      string
	RunID      int64
	Conclusion types.Conclusion
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %d for %s ended with %q", e.RunID, e.Stage, e.Conclusion)
}

// Is makes errors.Is(err, ErrRunFailed) hold.
func (e *RunFailedError) Is(target error) bool { return target == ErrRunFailed }

// ExitCode maps an orchestration error to the process exit status: 0 for
// success or interruption, 2 for configuration errors, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, ErrConfig):
		return 2
	default:
		return 1
	}
}

// cancelled converts a context error into ErrCancelled, keeping the message.
func cancelled(ctx context.Context, what string) error {
	return fmt.Errorf("%w: %s: %v", ErrCancelled, what, context.Cause(ctx))
}
