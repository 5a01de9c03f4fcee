package types

// ProjectConfig is the top-level cirunner.yaml configuration.
type ProjectConfig struct {
	Pipeline     string             `yaml:"pipeline" json:"pipeline"`
	Pipelines    []PipelineConfig   `yaml:"pipelines,omitempty" json:"pipelines,omitempty"`
	PipelineDir  string             `yaml:"pipelineDir,omitempty" json:"pipelineDir,omitempty"`
	ArtifactsDir string             `yaml:"artifactsDir,omitempty" json:"artifactsDir,omitempty"`
	LogLevel     string             `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	Store        StoreConfig        `yaml:"store" json:"store"`
	ControlPlane ControlPlaneConfig `yaml:"controlPlane" json:"controlPlane"`
	Credentials  CredentialsConfig  `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	Resolve      RetryPolicy        `yaml:"resolve,omitempty" json:"resolve,omitempty"`
	Alerts       []AlertConfig      `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Telemetry    TelemetryConfig    `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

// StoreConfig selects and configures the state store. Backend sections are
// decoded into their concrete types by the config package (a second YAML
// pass) to avoid an import cycle with the provider packages.
type StoreConfig struct {
	Type     StoreType   `yaml:"type" json:"type"`
	Path     string      `yaml:"path,omitempty" json:"path,omitempty"`
	Redis    interface{} `yaml:"-" json:"-"`
	DynamoDB interface{} `yaml:"-" json:"-"`
	Postgres interface{} `yaml:"-" json:"-"`
}

// ControlPlaneConfig configures the remote CI control plane client.
type ControlPlaneConfig struct {
	Type         ControlPlaneType `yaml:"type" json:"type"`
	BaseURL      string           `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	PollInterval string           `yaml:"pollInterval,omitempty" json:"pollInterval,omitempty"`
	Timeout      int              `yaml:"timeout,omitempty" json:"timeout,omitempty"` // seconds, per request
	GHPath       string           `yaml:"ghPath,omitempty" json:"ghPath,omitempty"`
}

// CredentialsConfig names where the control-plane token comes from.
type CredentialsConfig struct {
	Env      string `yaml:"env,omitempty" json:"env,omitempty"`
	SecretID string `yaml:"secretId,omitempty" json:"secretId,omitempty"`
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
}

// RetryPolicy bounds the resolution of a just-dispatched run's identifier.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"maxAttempts" json:"maxAttempts"`
	BackoffSeconds    int     `yaml:"backoffSeconds" json:"backoffSeconds"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier,omitempty" json:"backoffMultiplier,omitempty"`
}

// AlertConfig defines an alert sink.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	QueueURL string    `yaml:"queueUrl,omitempty" json:"queueUrl,omitempty"`
	EventBus string    `yaml:"eventBus,omitempty" json:"eventBus,omitempty"`
	Region   string    `yaml:"region,omitempty" json:"region,omitempty"`
}

// TelemetryConfig enables OTLP export of traces and metrics.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// PipelineConfig declares a named, ordered set of stages over one or more repositories.
type PipelineConfig struct {
	Name          string                `yaml:"name" json:"name"`
	DefaultBranch string                `yaml:"defaultBranch,omitempty" json:"defaultBranch,omitempty"`
	Repos         map[string]RepoConfig `yaml:"repos" json:"repos"`
	Stages        []StageConfig         `yaml:"stages" json:"stages"`
}

// RepoConfig binds a short repository name used by stages to its owner/name slug.
type RepoConfig struct {
	Slug   string `yaml:"slug" json:"slug"`
	Branch string `yaml:"branch,omitempty" json:"branch,omitempty"`
}

// UpstreamRef feeds the run id of an earlier stage to a build stage as a named input.
type UpstreamRef struct {
	Stage string `yaml:"stage" json:"stage"`
	Input string `yaml:"input" json:"input"`
}

// StageConfig declares one logical stage.
//
// Build stages set Repo and Workflow; when Platforms is non-empty the stage
// fans out and Workflow is a template in which "{platform}" is replaced by the
// platform's workflow alias, unless WorkflowOverrides names the file outright.
// Download stages set Source (a build stage) and Dest.
type StageConfig struct {
	Name              string            `yaml:"name" json:"name"`
	Kind              StageKind         `yaml:"kind" json:"kind"`
	Repo              string            `yaml:"repo,omitempty" json:"repo,omitempty"`
	Workflow          string            `yaml:"workflow,omitempty" json:"workflow,omitempty"`
	Inputs            map[string]string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Platforms         []string          `yaml:"platforms,omitempty" json:"platforms,omitempty"`
	WorkflowOverrides map[string]string `yaml:"workflowOverrides,omitempty" json:"workflowOverrides,omitempty"`
	Upstream          *UpstreamRef      `yaml:"upstream,omitempty" json:"upstream,omitempty"`
	Source            string            `yaml:"source,omitempty" json:"source,omitempty"`
	Dest              string            `yaml:"dest,omitempty" json:"dest,omitempty"`
}
