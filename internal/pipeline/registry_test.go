package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap357/cirunner/pkg/types"
)

func TestRegistry_BuiltIns(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{"conda", "llvmlite"}, reg.Names())

	cfg, err := reg.Get("conda")
	require.NoError(t, err)
	assert.Len(t, cfg.Stages, 5)
}

func TestRegistryGetNotFound(t *testing.T) {
	_, err := NewRegistry().Get("nonexistent")
	assert.ErrorContains(t, err, "not found")
}

func TestRegistryLoadDir(t *testing.T) {
	dir := t.TempDir()
	yml := `name: scipy
defaultBranch: develop
repos:
  scipy:
    slug: example/scipy
stages:
  - name: wheels
    kind: build
    repo: scipy
    workflow: "wheels_{platform}.yml"
    platforms: [linux, osx]
    inputs:
      python: "3.12"
  - name: fetch_wheels
    kind: download
    source: wheels
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scipy.yaml"), []byte(yml), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reg := NewRegistry()
	require.NoError(t, reg.LoadDir(dir))

	cfg, err := reg.Get("scipy")
	require.NoError(t, err)
	assert.Equal(t, "develop", cfg.DefaultBranch)

	plan, err := Compile(cfg, CompileOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"wheels_linux-64", "wheels_linux-aarch64", "wheels_osx-64", "wheels_osx-arm64"}, plan.Keys())
	tgt, _ := plan.Target("wheels_linux-aarch64")
	assert.Equal(t, "wheels_linux-arm64.yml", tgt.Ref.Workflow)
	assert.Equal(t, "develop", tgt.Ref.Branch)
}

func TestRegistryLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nstages: []\n"), 0o644))

	err := NewRegistry().LoadFile(path)
	assert.ErrorContains(t, err, "at least one stage")
}

func TestRegistryRegister_OverridesBuiltIn(t *testing.T) {
	reg := NewRegistry()
	cfg := Conda()
	cfg.Repos["numba"] = types.RepoConfig{Slug: "numba/numba"}
	require.NoError(t, reg.Register(cfg))

	got, err := reg.Get("conda")
	require.NoError(t, err)
	assert.Equal(t, "numba/numba", got.Repos["numba"].Slug)
}
