package trigger

import "github.com/swap357/cirunner/pkg/types"

// RunCheckState represents the normalized outcome of a run status check.
type RunCheckState string

const (
	RunCheckRunning   RunCheckState = "running"
	RunCheckSucceeded RunCheckState = "succeeded"
	RunCheckFailed    RunCheckState = "failed"
)

// StatusResult is the normalized result from checking a run's status.
type StatusResult struct {
	State           RunCheckState
	Conclusion      types.Conclusion
	Message         string                // original status/conclusion for logging
	FailureCategory types.FailureCategory // classification of the failure, if any
}

// statusCompleted is the only run status after which the conclusion is final.
const statusCompleted = "completed"

// NormalizeRun maps a remote run's status and conclusion onto a StatusResult.
func NormalizeRun(status string, conclusion types.Conclusion) StatusResult {
	msg := status
	if conclusion != "" {
		msg = status + "/" + string(conclusion)
	}

	if status != statusCompleted {
		return StatusResult{State: RunCheckRunning, Message: msg}
	}
	if conclusion.Passed() {
		return StatusResult{State: RunCheckSucceeded, Conclusion: conclusion, Message: msg}
	}

	res := StatusResult{State: RunCheckFailed, Conclusion: conclusion, Message: msg}
	switch conclusion {
	case types.ConclusionTimedOut:
		res.FailureCategory = types.FailureTimeout
	case types.ConclusionActionRequired, types.ConclusionStartupFailure, types.ConclusionSkipped:
		res.FailureCategory = types.FailurePermanent
	default:
		res.FailureCategory = types.FailureTransient
	}
	return res
}
