package pipeline

import "github.com/swap357/cirunner/pkg/types"

// Names of the pipelines that ship with cirunner.
const (
	CondaPipeline    = "conda"
	LlvmlitePipeline = "llvmlite"
)

// Conda builds llvmdev and llvmlite conda packages on the llvmlite repository,
// then numba conda packages for every platform, and downloads both.
func Conda() types.PipelineConfig {
	return types.PipelineConfig{
		Name:          CondaPipeline,
		DefaultBranch: "main",
		Repos: map[string]types.RepoConfig{
			"llvmlite": {Slug: "swap357/llvmlite"},
			"numba":    {Slug: "swap357/numba"},
		},
		Stages: []types.StageConfig{
			{
				Name:     "llvmdev",
				Kind:     types.StageBuild,
				Repo:     "llvmlite",
				Workflow: "llvmdev_build.yml",
				Inputs:   map[string]string{"platform": "all", "recipe": "all"},
			},
			{
				Name:     "llvmlite_conda",
				Kind:     types.StageBuild,
				Repo:     "llvmlite",
				Workflow: "llvmlite_conda_builder.yml",
				Inputs:   map[string]string{"platform": "all"},
				Upstream: &types.UpstreamRef{Stage: "llvmdev", Input: "llvmdev_run_id"},
			},
			{
				Name:              "numba_conda",
				Kind:              types.StageBuild,
				Repo:              "numba",
				Workflow:          "numba_{platform}_conda_builder.yml",
				Platforms:         []string{"all"},
				WorkflowOverrides: map[string]string{string(Win64): "numba_win-64_builder.yml"},
				Upstream:          &types.UpstreamRef{Stage: "llvmlite_conda", Input: "llvmlite_run_id"},
			},
			{
				Name:   "download_llvmlite_conda",
				Kind:   types.StageDownload,
				Source: "llvmlite_conda",
				Dest:   "llvmlite_conda",
			},
			{
				Name:   "download_numba_conda",
				Kind:   types.StageDownload,
				Source: "numba_conda",
				Dest:   "numba_conda",
			},
		},
	}
}

// Llvmlite builds llvmdev, then per-platform llvmlite conda packages and
// wheels on the llvmlite repository, and downloads both.
func Llvmlite() types.PipelineConfig {
	return types.PipelineConfig{
		Name:          LlvmlitePipeline,
		DefaultBranch: "main",
		Repos: map[string]types.RepoConfig{
			"llvmlite": {Slug: "swap357/llvmlite"},
		},
		Stages: []types.StageConfig{
			{
				Name:     "llvmdev",
				Kind:     types.StageBuild,
				Repo:     "llvmlite",
				Workflow: "llvmdev_build.yml",
				Inputs:   map[string]string{"platform": "all", "recipe": "all"},
			},
			{
				Name:      "llvmlite_conda",
				Kind:      types.StageBuild,
				Repo:      "llvmlite",
				Workflow:  "llvmlite_{platform}_conda_builder.yml",
				Platforms: []string{"all"},
				Upstream:  &types.UpstreamRef{Stage: "llvmdev", Input: "llvmdev_run_id"},
			},
			{
				Name:      "llvmlite_wheel",
				Kind:      types.StageBuild,
				Repo:      "llvmlite",
				Workflow:  "llvmlite_{platform}_wheel_builder.yml",
				Platforms: []string{"all"},
				Upstream:  &types.UpstreamRef{Stage: "llvmdev", Input: "llvmdev_run_id"},
			},
			{
				Name:   "download_llvmlite_conda",
				Kind:   types.StageDownload,
				Source: "llvmlite_conda",
				Dest:   "llvmlite_conda",
			},
			{
				Name:   "download_llvmlite_wheel",
				Kind:   types.StageDownload,
				Source: "llvmlite_wheel",
				Dest:   "llvmlite_wheel",
			},
		},
	}
}
