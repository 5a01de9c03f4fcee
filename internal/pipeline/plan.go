// Package pipeline turns declared pipelines into ordered plans of concrete
// stage keys, repositories and workflow files.
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/swap357/cirunner/pkg/types"
)

const (
	// PlatformPlaceholder is replaced by a platform's workflow alias in
	// fan-out workflow templates.
	PlatformPlaceholder = "{platform}"

	// DefaultBranch is used when neither flags nor configuration name one.
	DefaultBranch = "main"

	// DefaultArtifactsDir is where download stages write.
	DefaultArtifactsDir = "artifacts"

	// AllSteps selects every stage of a plan.
	AllSteps = "all"
)

// CompileOptions carry invocation-level choices into a plan.
type CompileOptions struct {
	// Branch applies to every repository unless RepoBranches names it.
	Branch       string
	RepoBranches map[string]string
	ArtifactsDir string
}

// Target is one concrete unit of work: a stage key bound to a workflow.
// Download targets reuse the key and workflow of the build target they fetch.
type Target struct {
	Key      string
	Platform Platform // empty unless the stage fans out
	Ref      types.WorkflowRef
	Dest     string // download targets only
}

// Stage is a compiled stage.
type Stage struct {
	Name     string
	Kind     types.StageKind
	FanOut   bool
	Inputs   map[string]string
	Upstream *types.UpstreamRef
	Source   string
	Targets  []Target
}

// Plan is a compiled pipeline.
type Plan struct {
	Name   string
	Stages []Stage

	index   map[string]int
	targets map[string]Target
}

// TargetKey names the stage key of one platform of a fan-out stage.
func TargetKey(stage string, p Platform) string {
	return stage + "_" + string(p)
}

// Compile validates cfg and expands it into a plan.
func Compile(cfg types.PipelineConfig, opts CompileOptions) (*Plan, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", cfg.Name, err)
	}
	for repo := range opts.RepoBranches {
		if _, ok := cfg.Repos[repo]; !ok {
			return nil, fmt.Errorf("pipeline %q: branch given for unknown repo %q", cfg.Name, repo)
		}
	}
	artifacts := opts.ArtifactsDir
	if artifacts == "" {
		artifacts = DefaultArtifactsDir
	}

	plan := &Plan{
		Name:    cfg.Name,
		index:   make(map[string]int, len(cfg.Stages)),
		targets: make(map[string]Target),
	}

	for _, sc := range cfg.Stages {
		st := Stage{
			Name:     sc.Name,
			Kind:     kindOf(sc),
			FanOut:   len(sc.Platforms) > 0,
			Inputs:   copyInputs(sc.Inputs),
			Upstream: sc.Upstream,
			Source:   sc.Source,
		}

		switch st.Kind {
		case types.StageBuild:
			st.Targets = buildTargets(cfg, sc, branchFor(cfg, sc.Repo, opts))
			for _, t := range st.Targets {
				plan.targets[t.Key] = t
			}
		case types.StageDownload:
			src := plan.Stages[plan.index[sc.Source]]
			dest := sc.Dest
			if dest == "" {
				dest = sc.Source
			}
			dest = filepath.Join(artifacts, dest)
			for _, t := range src.Targets {
				dt := t
				dt.Dest = dest
				if src.FanOut {
					dt.Dest = filepath.Join(dest, t.Key)
				}
				st.Targets = append(st.Targets, dt)
			}
			st.FanOut = src.FanOut
		}

		plan.index[st.Name] = len(plan.Stages)
		plan.Stages = append(plan.Stages, st)
	}
	return plan, nil
}

func branchFor(cfg types.PipelineConfig, repo string, opts CompileOptions) string {
	if b := opts.RepoBranches[repo]; b != "" {
		return b
	}
	if opts.Branch != "" {
		return opts.Branch
	}
	if b := cfg.Repos[repo].Branch; b != "" {
		return b
	}
	if cfg.DefaultBranch != "" {
		return cfg.DefaultBranch
	}
	return DefaultBranch
}

// buildTargets expands a validated build stage.
func buildTargets(cfg types.PipelineConfig, sc types.StageConfig, branch string) []Target {
	slug := cfg.Repos[sc.Repo].Slug
	if len(sc.Platforms) == 0 {
		return []Target{{
			Key: sc.Name,
			Ref: types.WorkflowRef{Repo: slug, Workflow: sc.Workflow, Branch: branch},
		}}
	}

	platforms, _ := ExpandPlatforms(sc.Platforms)
	overrides, _ := parseOverrides(sc.WorkflowOverrides, platforms)
	targets := make([]Target, 0, len(platforms))
	for _, p := range platforms {
		wf, ok := overrides[p]
		if !ok {
			wf = strings.ReplaceAll(sc.Workflow, PlatformPlaceholder, p.WorkflowAlias())
		}
		targets = append(targets, Target{
			Key:      TargetKey(sc.Name, p),
			Platform: p,
			Ref:      types.WorkflowRef{Repo: slug, Workflow: wf, Branch: branch},
		})
	}
	return targets
}

func copyInputs(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Stage returns the compiled stage with the given name.
func (p *Plan) Stage(name string) (Stage, bool) {
	i, ok := p.index[name]
	if !ok {
		return Stage{}, false
	}
	return p.Stages[i], true
}

// StageNames returns stage names in execution order.
func (p *Plan) StageNames() []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}

// Keys returns every build stage key in execution order.
func (p *Plan) Keys() []string {
	var keys []string
	for _, s := range p.Stages {
		if s.Kind != types.StageBuild {
			continue
		}
		for _, t := range s.Targets {
			keys = append(keys, t.Key)
		}
	}
	return keys
}

// Target returns the build target that owns a stage key.
func (p *Plan) Target(key string) (Target, bool) {
	t, ok := p.targets[key]
	return t, ok
}

// SelectSteps parses a comma-separated step list ("all" selects every stage)
// and returns the selected stages in execution order.
func (p *Plan) SelectSteps(steps string) ([]Stage, error) {
	wanted := make(map[string]bool)
	for _, s := range strings.Split(steps, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if s == AllSteps {
			return append([]Stage(nil), p.Stages...), nil
		}
		if _, ok := p.index[s]; !ok {
			return nil, fmt.Errorf("unknown step %q (valid: %s,%s)", s, strings.Join(p.StageNames(), ","), AllSteps)
		}
		wanted[s] = true
	}
	if len(wanted) == 0 {
		return nil, fmt.Errorf("no steps selected")
	}

	var out []Stage
	for _, s := range p.Stages {
		if wanted[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}
