// Package lifecycle implements the stage status state machine.
package lifecycle

import (
	"fmt"

	"github.com/swap357/cirunner/pkg/types"
)

// Transition table: from -> allowed tos. Operator overrides (manual seed,
// reset) bypass this table.
var validTransitions = map[types.StageStatus][]types.StageStatus{
	types.StageAbsent:     {types.StageDispatched},
	types.StageDispatched: {types.StageSucceeded, types.StageFailed},
	types.StageSucceeded:  {},
	types.StageFailed:     {},
}

// CanTransition checks if moving a stage from one status to another is valid.
func CanTransition(from, to types.StageStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates the move, or returns an error if it is invalid.
func Transition(from, to types.StageStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// Resolved returns the status a dispatched stage moves to for a conclusion.
func Resolved(c types.Conclusion) types.StageStatus {
	if c.Passed() {
		return types.StageSucceeded
	}
	return types.StageFailed
}
