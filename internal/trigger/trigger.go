// Package trigger drives the remote CI control plane: dispatching workflows,
// resolving and watching runs, and retrieving their artifacts.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/swap357/cirunner/pkg/types"
)

// ControlPlane is the remote CI service the engine talks to.
type ControlPlane interface {
	// Dispatch triggers a workflow. The returned RunID is zero when the
	// control plane did not report the new run.
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResponse, error)
	// ListRecentRuns returns up to limit runs of a workflow on a branch, newest first.
	ListRecentRuns(ctx context.Context, repo, workflow, branch string, limit int) ([]RunSummary, error)
	// WatchUntilTerminal blocks until the run completes or ctx is done.
	WatchUntilTerminal(ctx context.Context, repo string, runID int64) error
	GetConclusion(ctx context.Context, repo string, runID int64) (types.Conclusion, error)
	// DownloadArtifacts writes every artifact of the run under dest.
	DownloadArtifacts(ctx context.Context, repo string, runID int64, dest string) error
}

// DispatchRequest names a workflow run to trigger.
type DispatchRequest struct {
	Repo     string
	Workflow string
	Branch   string
	Inputs   map[string]string
}

// DispatchResponse is what the control plane reported for a dispatch.
type DispatchResponse struct {
	RunID  int64
	Output string // raw response text, kept for diagnostics
}

// RunSummary describes one remote run as returned by a run listing.
type RunSummary struct {
	ID         int64            `json:"databaseId"`
	Status     string           `json:"status"`
	Conclusion types.Conclusion `json:"conclusion"`
	CreatedAt  time.Time        `json:"createdAt"`
}

var runURLPattern = regexp.MustCompile(`/actions/runs/(\d+)`)

// ParseRunID extracts a run id from text containing a run URL.
func ParseRunID(text string) (int64, bool) {
	m := runURLPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// StatusError is returned when the control plane answers with an HTTP error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("control plane returned status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// ClassifyFailure categorizes a control-plane error.
func ClassifyFailure(err error) types.FailureCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) || strings.Contains(err.Error(), "deadline exceeded") {
		return types.FailureTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == 429 || se.StatusCode >= 500 {
			return types.FailureTransient
		}
		if se.StatusCode >= 400 {
			return types.FailurePermanent
		}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.FailureTransient
	}

	// HTTP 4xx errors reported as text (gh CLI output) are permanent
	if strings.Contains(err.Error(), "HTTP 4") || strings.Contains(err.Error(), "status 4") {
		return types.FailurePermanent
	}

	return types.FailureTransient
}
