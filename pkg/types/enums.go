package types

// Conclusion is the terminal outcome classification reported for a remote run.
type Conclusion string

// Conclusion values reported by the control plane. Only ConclusionSuccess passes.
const (
	ConclusionSuccess        Conclusion = "success"
	ConclusionFailure        Conclusion = "failure"
	ConclusionCancelled      Conclusion = "cancelled"
	ConclusionTimedOut       Conclusion = "timed_out"
	ConclusionSkipped        Conclusion = "skipped"
	ConclusionNeutral        Conclusion = "neutral"
	ConclusionActionRequired Conclusion = "action_required"
	ConclusionStartupFailure Conclusion = "startup_failure"
	ConclusionStale          Conclusion = "stale"
)

// Passed reports whether the conclusion is the single recognized success value.
func (c Conclusion) Passed() bool { return c == ConclusionSuccess }

// StageStatus is the lifecycle position of a stage, derived from its record.
type StageStatus string

// StageStatus values.
const (
	StageAbsent     StageStatus = "ABSENT"
	StageDispatched StageStatus = "DISPATCHED"
	StageSucceeded  StageStatus = "SUCCEEDED"
	StageFailed     StageStatus = "FAILED"
)

// StageKind distinguishes stages that trigger builds from stages that only
// retrieve artifacts of an earlier build stage.
type StageKind string

// StageKind values.
const (
	StageBuild    StageKind = "build"
	StageDownload StageKind = "download"
)

// StoreType selects the state store backend.
type StoreType string

// StoreType values.
const (
	StoreFile     StoreType = "file"
	StoreRedis    StoreType = "redis"
	StoreDynamoDB StoreType = "dynamodb"
	StorePostgres StoreType = "postgres"
)

// ControlPlaneType selects how the remote CI control plane is driven.
type ControlPlaneType string

// ControlPlaneType values.
const (
	ControlPlaneGitHub ControlPlaneType = "github"
	ControlPlaneGHCLI  ControlPlaneType = "gh"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole     AlertType = "console"
	AlertWebhook     AlertType = "webhook"
	AlertFile        AlertType = "file"
	AlertSQS         AlertType = "sqs"
	AlertEventBridge AlertType = "eventbridge"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// FailureCategory classifies why a control-plane call failed.
type FailureCategory string

const (
	FailureTransient FailureCategory = "TRANSIENT"
	FailurePermanent FailureCategory = "PERMANENT"
	FailureTimeout   FailureCategory = "TIMEOUT"
)
