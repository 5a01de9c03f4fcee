// Package commands implements the CLI subcommands for the cirunner binary.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/swap357/cirunner/internal/config"
	"github.com/swap357/cirunner/internal/engine"
	"github.com/swap357/cirunner/internal/pipeline"
	"github.com/swap357/cirunner/internal/provider"
	ddbprov "github.com/swap357/cirunner/internal/provider/dynamodb"
	"github.com/swap357/cirunner/internal/provider/file"
	"github.com/swap357/cirunner/internal/provider/postgres"
	"github.com/swap357/cirunner/internal/provider/redis"
	"github.com/swap357/cirunner/pkg/types"
)

// Globals holds the persistent flags shared by every subcommand.
type Globals struct {
	ConfigPath string
	LogLevel   string
	StatePath  string
}

// BindGlobals registers the persistent flags on root.
func BindGlobals(root *cobra.Command) *Globals {
	g := &Globals{}
	root.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	root.PersistentFlags().StringVar(&g.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&g.StatePath, "state", "", "state file path; selects the file store")
	return g
}

// loadConfig reads the project config and applies the global flag overrides.
func loadConfig(g *Globals) (*types.ProjectConfig, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}
	if g.StatePath != "" {
		cfg.Store.Type = types.StoreFile
		cfg.Store.Path = g.StatePath
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	return cfg, nil
}

// newLogger builds the invocation logger. Every record carries the
// invocation id.
func newLogger(w io.Writer, level, invocation string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil || level == "" {
		lvl = slog.LevelInfo
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("invocation", invocation)
}

func newInvocationID() string {
	return ulid.Make().String()
}

// newProvider creates the configured state store.
func newProvider(cfg *types.ProjectConfig) (provider.Provider, error) {
	switch cfg.Store.Type {
	case types.StoreFile, "":
		return file.New(cfg.Store.Path), nil
	case types.StoreRedis:
		rc, ok := cfg.Store.Redis.(*redis.Config)
		if !ok || rc == nil {
			return nil, fmt.Errorf("redis config is required when store type is redis")
		}
		return redis.New(rc), nil
	case types.StoreDynamoDB:
		dc, ok := cfg.Store.DynamoDB.(*ddbprov.Config)
		if !ok || dc == nil {
			return nil, fmt.Errorf("dynamodb config is required when store type is dynamodb")
		}
		return ddbprov.New(dc)
	case types.StorePostgres:
		pc, ok := cfg.Store.Postgres.(*postgres.Config)
		if !ok || pc == nil {
			return nil, fmt.Errorf("postgres config is required when store type is postgres")
		}
		return postgres.New(pc), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}

// openStore creates and starts the state store. The caller stops it.
func openStore(ctx context.Context, cfg *types.ProjectConfig) (provider.Provider, error) {
	prov, err := newProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}
	if err := prov.Start(ctx); err != nil {
		return nil, fmt.Errorf("connecting to %s store: %w", cfg.Store.Type, err)
	}
	return prov, nil
}

// newRegistry returns the built-in pipelines plus those declared in the
// config file and its pipeline directory.
func newRegistry(cfg *types.ProjectConfig) (*pipeline.Registry, error) {
	reg := pipeline.NewRegistry()
	if cfg.PipelineDir != "" {
		if err := reg.LoadDir(cfg.PipelineDir); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.Pipelines {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// planOptions carry the flags that shape a compiled plan.
type planOptions struct {
	pipeline     string
	branch       string
	repoBranches []string
}

func (o *planOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.pipeline, "pipeline", "", "pipeline to use (default from config, else "+config.DefaultPipeline+")")
	cmd.Flags().StringVar(&o.branch, "branch", "", "branch or ref to build in every repository")
	cmd.Flags().StringArrayVar(&o.repoBranches, "repo-branch", nil, "per-repository branch as REPO=REF (repeatable)")
}

// loadPlan compiles the selected pipeline. Every failure is a configuration error.
func loadPlan(cfg *types.ProjectConfig, o planOptions) (*pipeline.Plan, error) {
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}
	name := o.pipeline
	if name == "" {
		name = cfg.Pipeline
	}
	pc, err := reg.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}
	repoBranches, err := parseRepoBranches(o.repoBranches)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}
	plan, err := pipeline.Compile(pc, pipeline.CompileOptions{
		Branch:       o.branch,
		RepoBranches: repoBranches,
		ArtifactsDir: cfg.ArtifactsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}
	return plan, nil
}

// parseRepoBranches parses REPO=REF pairs.
func parseRepoBranches(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		repo, ref, ok := strings.Cut(p, "=")
		repo, ref = strings.TrimSpace(repo), strings.TrimSpace(ref)
		if !ok || repo == "" || ref == "" {
			return nil, fmt.Errorf("invalid --repo-branch %q, want REPO=REF", p)
		}
		out[repo] = ref
	}
	return out, nil
}
