package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/swap357/cirunner/pkg/types"
)

// Validate checks a pipeline declaration for structural errors. Everything
// that can be wrong with a pipeline is reported here, before any stage runs.
func Validate(cfg types.PipelineConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(cfg.Stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	for name, repo := range cfg.Repos {
		if parts := strings.Split(repo.Slug, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("repo %q: slug %q must be owner/name", name, repo.Slug)
		}
	}

	kinds := make(map[string]types.StageKind, len(cfg.Stages))
	fanOut := make(map[string]bool, len(cfg.Stages))
	keys := make(map[string]string)

	for i, s := range cfg.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage %d: name is required", i)
		}
		if _, dup := kinds[s.Name]; dup {
			return fmt.Errorf("stage %q: duplicate name", s.Name)
		}
		if strings.ContainsAny(s.Name, ",: ") || s.Name == "all" {
			return fmt.Errorf("stage %q: name must not be \"all\" or contain commas, colons or spaces", s.Name)
		}

		switch kindOf(s) {
		case types.StageBuild:
			stageKeys, err := validateBuild(cfg, s, kinds, fanOut)
			if err != nil {
				return fmt.Errorf("stage %q: %w", s.Name, err)
			}
			for _, k := range stageKeys {
				if owner, dup := keys[k]; dup {
					return fmt.Errorf("stage %q: key %q already produced by stage %q", s.Name, k, owner)
				}
				keys[k] = s.Name
			}
			fanOut[s.Name] = len(s.Platforms) > 0
		case types.StageDownload:
			if err := validateDownload(s, kinds); err != nil {
				return fmt.Errorf("stage %q: %w", s.Name, err)
			}
		default:
			return fmt.Errorf("stage %q: unknown kind %q", s.Name, s.Kind)
		}
		kinds[s.Name] = kindOf(s)
	}
	return nil
}

func kindOf(s types.StageConfig) types.StageKind {
	if s.Kind == "" {
		return types.StageBuild
	}
	return s.Kind
}

func validateBuild(cfg types.PipelineConfig, s types.StageConfig, kinds map[string]types.StageKind, fanOut map[string]bool) ([]string, error) {
	if _, ok := cfg.Repos[s.Repo]; !ok {
		return nil, fmt.Errorf("unknown repo %q", s.Repo)
	}
	if s.Workflow == "" {
		return nil, fmt.Errorf("workflow is required")
	}
	if s.Source != "" || s.Dest != "" {
		return nil, fmt.Errorf("source and dest apply to download stages only")
	}

	if up := s.Upstream; up != nil {
		if up.Input == "" {
			return nil, fmt.Errorf("upstream input name is required")
		}
		kind, ok := kinds[up.Stage]
		if !ok {
			return nil, fmt.Errorf("upstream %q must be an earlier stage", up.Stage)
		}
		if kind != types.StageBuild {
			return nil, fmt.Errorf("upstream %q is not a build stage", up.Stage)
		}
		if fanOut[up.Stage] {
			return nil, fmt.Errorf("upstream %q fans out and has no single run id", up.Stage)
		}
	}

	if len(s.Platforms) == 0 {
		if strings.Contains(s.Workflow, PlatformPlaceholder) {
			return nil, fmt.Errorf("workflow %q uses %s but the stage declares no platforms", s.Workflow, PlatformPlaceholder)
		}
		if len(s.WorkflowOverrides) > 0 {
			return nil, fmt.Errorf("workflowOverrides require platforms")
		}
		return []string{s.Name}, nil
	}

	platforms, err := ExpandPlatforms(s.Platforms)
	if err != nil {
		return nil, err
	}
	overrides, err := parseOverrides(s.WorkflowOverrides, platforms)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(platforms))
	for _, p := range platforms {
		if _, ok := overrides[p]; !ok && !strings.Contains(s.Workflow, PlatformPlaceholder) {
			return nil, fmt.Errorf("workflow %q must contain %s for fan-out", s.Workflow, PlatformPlaceholder)
		}
		keys = append(keys, TargetKey(s.Name, p))
	}
	return keys, nil
}

func validateDownload(s types.StageConfig, kinds map[string]types.StageKind) error {
	if s.Repo != "" || s.Workflow != "" || s.Upstream != nil || len(s.Platforms) > 0 {
		return fmt.Errorf("download stages take only source and dest")
	}
	kind, ok := kinds[s.Source]
	if !ok {
		return fmt.Errorf("source %q must be an earlier stage", s.Source)
	}
	if kind != types.StageBuild {
		return fmt.Errorf("source %q is not a build stage", s.Source)
	}
	if s.Dest != "" {
		clean := filepath.Clean(s.Dest)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("dest %q must be relative to the artifacts directory", s.Dest)
		}
	}
	return nil
}

func parseOverrides(raw map[string]string, platforms []Platform) (map[Platform]string, error) {
	declared := make(map[Platform]bool, len(platforms))
	for _, p := range platforms {
		declared[p] = true
	}

	out := make(map[Platform]string, len(raw))
	for name, wf := range raw {
		p, err := ParsePlatform(name)
		if err != nil {
			return nil, fmt.Errorf("workflowOverrides: %w", err)
		}
		if !declared[p] {
			return nil, fmt.Errorf("workflowOverrides: platform %q is not built by this stage", name)
		}
		if wf == "" {
			return nil, fmt.Errorf("workflowOverrides: empty workflow for %q", name)
		}
		out[p] = wf
	}
	return out, nil
}
