package types

import "time"

// WorkflowRef identifies a remote workflow on a repository branch.
type WorkflowRef struct {
	Repo     string `json:"repo"`
	Workflow string `json:"workflow"`
	Branch   string `json:"branch"`
}

// Seed is an operator-supplied binding of a stage key to an existing run.
type Seed struct {
	StageKey string
	RunID    int64
}

// Alert is a notification about pipeline progress or failure.
type Alert struct {
	Level      AlertLevel `json:"level"`
	Pipeline   string     `json:"pipeline,omitempty"`
	Stage      string     `json:"stage,omitempty"`
	RunID      int64      `json:"runId,omitempty"`
	Invocation string     `json:"invocation,omitempty"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
}
