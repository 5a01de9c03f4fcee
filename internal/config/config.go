// Package config handles loading and validation of cirunner.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	ddbprov "github.com/swap357/cirunner/internal/provider/dynamodb"
	"github.com/swap357/cirunner/internal/provider/file"
	"github.com/swap357/cirunner/internal/provider/postgres"
	"github.com/swap357/cirunner/internal/provider/redis"
	"github.com/swap357/cirunner/internal/watcher"
	"github.com/swap357/cirunner/pkg/types"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "cirunner.yaml"

// Environment overrides, applied after the file is read.
const (
	EnvStore        = "CIRUNNER_STORE"
	EnvStateFile    = "CIRUNNER_STATE_FILE"
	EnvPipeline     = "CIRUNNER_PIPELINE"
	EnvControlPlane = "CIRUNNER_CONTROL_PLANE"
)

// DefaultPipeline is run when neither flags, file nor environment name one.
const DefaultPipeline = "conda"

// storeSections is a helper struct used for a second YAML unmarshal pass
// to decode backend-specific store sections into their concrete types.
type storeSections struct {
	Store struct {
		Redis    *redis.Config    `yaml:"redis,omitempty"`
		DynamoDB *ddbprov.Config  `yaml:"dynamodb,omitempty"`
		Postgres *postgres.Config `yaml:"postgres,omitempty"`
	} `yaml:"store"`
}

// Load reads path, or DefaultFile when path is empty. The default file is
// optional; an explicitly named one must exist. Defaults and environment
// overrides are applied before validation.
func Load(path string) (*types.ProjectConfig, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	var cfg types.ProjectConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Parse(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Parse decodes YAML into cfg, including the backend-specific store sections.
func Parse(data []byte, cfg *types.ProjectConfig) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	// Second pass: decode store sections into concrete types.
	var raw storeSections
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing store config: %w", err)
	}
	if raw.Store.Redis != nil {
		cfg.Store.Redis = raw.Store.Redis
	}
	if raw.Store.DynamoDB != nil {
		cfg.Store.DynamoDB = raw.Store.DynamoDB
	}
	if raw.Store.Postgres != nil {
		cfg.Store.Postgres = raw.Store.Postgres
	}
	return nil
}

func applyEnv(cfg *types.ProjectConfig, getenv func(string) string) {
	if v := getenv(EnvStore); v != "" {
		cfg.Store.Type = types.StoreType(strings.ToLower(v))
	}
	if v := getenv(EnvStateFile); v != "" {
		cfg.Store.Path = v
	}
	if v := getenv(EnvPipeline); v != "" {
		cfg.Pipeline = v
	}
	if v := getenv(EnvControlPlane); v != "" {
		cfg.ControlPlane.Type = types.ControlPlaneType(strings.ToLower(v))
	}
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.Pipeline == "" {
		cfg.Pipeline = DefaultPipeline
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = types.StoreFile
	}
	if cfg.Store.Type == types.StoreFile && cfg.Store.Path == "" {
		cfg.Store.Path = file.DefaultPath
	}
	if cfg.ControlPlane.Type == "" {
		cfg.ControlPlane.Type = types.ControlPlaneGitHub
	}
	if cfg.Resolve.MaxAttempts == 0 && cfg.Resolve.BackoffSeconds == 0 {
		cfg.Resolve = watcher.DefaultResolvePolicy()
	}
	if len(cfg.Alerts) == 0 {
		cfg.Alerts = []types.AlertConfig{{Type: types.AlertConsole}}
	}
}

func validate(cfg *types.ProjectConfig) error {
	switch cfg.Store.Type {
	case types.StoreFile:
	case types.StoreRedis:
		rc, _ := cfg.Store.Redis.(*redis.Config)
		if rc == nil {
			return fmt.Errorf("store.redis config is required when store type is redis")
		}
		if rc.Addr == "" {
			return fmt.Errorf("store.redis.addr is required")
		}
	case types.StoreDynamoDB:
		dc, _ := cfg.Store.DynamoDB.(*ddbprov.Config)
		if dc == nil {
			return fmt.Errorf("store.dynamodb config is required when store type is dynamodb")
		}
		if dc.TableName == "" {
			return fmt.Errorf("store.dynamodb.tableName is required")
		}
	case types.StorePostgres:
		pc, _ := cfg.Store.Postgres.(*postgres.Config)
		if pc == nil {
			return fmt.Errorf("store.postgres config is required when store type is postgres")
		}
		if pc.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}

	switch cfg.ControlPlane.Type {
	case types.ControlPlaneGitHub, types.ControlPlaneGHCLI:
	default:
		return fmt.Errorf("unknown controlPlane type %q", cfg.ControlPlane.Type)
	}
	if cfg.ControlPlane.Timeout < 0 {
		return fmt.Errorf("controlPlane.timeout must not be negative")
	}

	if cfg.Resolve.MaxAttempts < 1 {
		return fmt.Errorf("resolve.maxAttempts must be at least 1")
	}
	if cfg.Resolve.BackoffSeconds < 0 {
		return fmt.Errorf("resolve.backoffSeconds must not be negative")
	}

	for i, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertWebhook:
			if a.URL == "" {
				return fmt.Errorf("alerts[%d]: webhook requires url", i)
			}
		case types.AlertFile:
			if a.Path == "" {
				return fmt.Errorf("alerts[%d]: file requires path", i)
			}
		case types.AlertSQS:
			if a.QueueURL == "" {
				return fmt.Errorf("alerts[%d]: sqs requires queueUrl", i)
			}
		case types.AlertEventBridge:
		default:
			return fmt.Errorf("alerts[%d]: unknown alert type %q", i, a.Type)
		}
	}
	return nil
}
