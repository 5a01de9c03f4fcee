// Package types defines the public domain types for the cirunner build orchestrator.
package types

// StageRecord is the persisted progress of one stage key.
type StageRecord struct {
	RunID      int64      `json:"run_id,omitempty" dynamodbav:"run_id,omitempty"`
	Completed  bool       `json:"completed" dynamodbav:"completed"`
	Conclusion Conclusion `json:"conclusion,omitempty" dynamodbav:"conclusion,omitempty"`
}

// HasRun reports whether a remote run is bound to the record.
func (r StageRecord) HasRun() bool { return r.RunID > 0 }

// Succeeded reports whether the bound run finished with success and can be reused.
func (r StageRecord) Succeeded() bool {
	return r.HasRun() && r.Completed && r.Conclusion.Passed()
}

// Pending reports whether the bound run was dispatched but not yet resolved.
func (r StageRecord) Pending() bool { return r.HasRun() && !r.Completed }

// Failed reports whether the bound run finished with a non-success conclusion.
func (r StageRecord) Failed() bool {
	return r.HasRun() && r.Completed && !r.Conclusion.Passed()
}

// Status derives the lifecycle status of the record.
func (r StageRecord) Status() StageStatus {
	switch {
	case r.Succeeded():
		return StageSucceeded
	case r.Failed():
		return StageFailed
	case r.Pending():
		return StageDispatched
	default:
		return StageAbsent
	}
}

// StateDocument maps stage keys to their records. It is persisted wholesale.
type StateDocument map[string]StageRecord

// Clone returns a copy that shares no storage with d.
func (d StateDocument) Clone() StateDocument {
	out := make(StateDocument, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
