package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/swap357/cirunner/pkg/types"
)

// Registry holds the pipelines available to an invocation, keyed by name.
type Registry struct {
	pipelines map[string]types.PipelineConfig
}

// NewRegistry creates a registry pre-populated with the built-in pipelines.
func NewRegistry() *Registry {
	r := &Registry{pipelines: make(map[string]types.PipelineConfig)}
	for _, cfg := range []types.PipelineConfig{Conda(), Llvmlite()} {
		r.pipelines[cfg.Name] = cfg
	}
	return r
}

// LoadDir loads all YAML pipeline files from a directory.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading pipeline dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		if err := r.LoadFile(path); err != nil {
			return fmt.Errorf("loading pipeline %s: %w", path, err)
		}
	}
	return nil
}

// LoadFile loads a single pipeline YAML file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var cfg types.PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return r.Register(cfg)
}

// Register validates a pipeline and adds it, replacing any pipeline of the
// same name (built-ins included).
func (r *Registry) Register(cfg types.PipelineConfig) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("validating pipeline %q: %w", cfg.Name, err)
	}
	r.pipelines[cfg.Name] = cfg
	return nil
}

// Get returns a pipeline by name.
func (r *Registry) Get(name string) (types.PipelineConfig, error) {
	cfg, ok := r.pipelines[name]
	if !ok {
		return types.PipelineConfig{}, fmt.Errorf("pipeline %q not found (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return cfg, nil
}

// Names returns the registered pipeline names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
