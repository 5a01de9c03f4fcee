package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/swap357/cirunner/internal/provider/file"
	"github.com/swap357/cirunner/internal/provider/redis"
	"github.com/swap357/cirunner/pkg/types"
)

func TestNewProvider_File(t *testing.T) {
	cfg := &types.ProjectConfig{Store: types.StoreConfig{Type: types.StoreFile, Path: "/tmp/x.json"}}
	p, err := newProvider(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	fp, ok := p.(*file.FileProvider)
	if !ok {
		t.Fatalf("expected *file.FileProvider, got %T", p)
	}
	if fp.Path() != "/tmp/x.json" {
		t.Errorf("expected path /tmp/x.json, got %q", fp.Path())
	}
}

func TestNewProvider_Redis(t *testing.T) {
	cfg := &types.ProjectConfig{Store: types.StoreConfig{
		Type:  types.StoreRedis,
		Redis: &redis.Config{Addr: "localhost:6379"},
	}}
	p, err := newProvider(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

func TestNewProvider_MissingSection(t *testing.T) {
	for _, st := range []types.StoreType{types.StoreRedis, types.StoreDynamoDB, types.StorePostgres} {
		cfg := &types.ProjectConfig{Store: types.StoreConfig{Type: st}}
		if _, err := newProvider(cfg); err == nil {
			t.Errorf("expected error for %s without config", st)
		}
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	cfg := &types.ProjectConfig{Store: types.StoreConfig{Type: "etcd"}}
	_, err := newProvider(cfg)
	if err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestParseRepoBranches(t *testing.T) {
	got, err := parseRepoBranches([]string{"numba=release0.61", " llvmlite = main "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["numba"] != "release0.61" || got["llvmlite"] != "main" {
		t.Errorf("unexpected result: %v", got)
	}

	for _, bad := range []string{"numba", "=main", "numba="} {
		if _, err := parseRepoBranches([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestNewRegistry_PipelineDir(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`name: widgets
repos:
  app:
    slug: acme/app
stages:
  - name: build
    kind: build
    repo: app
    workflow: build.yml
`)
	if err := os.WriteFile(filepath.Join(dir, "widgets.yaml"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := newRegistry(&types.ProjectConfig{PipelineDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := reg.Names()
	if len(names) != 3 {
		t.Fatalf("expected built-ins plus widgets, got %v", names)
	}
	if _, err := reg.Get("widgets"); err != nil {
		t.Errorf("expected widgets pipeline: %v", err)
	}
}

func TestNewRegistry_MissingDir(t *testing.T) {
	_, err := newRegistry(&types.ProjectConfig{PipelineDir: "/nonexistent"})
	if err == nil {
		t.Fatal("expected error for missing pipeline dir")
	}
}
