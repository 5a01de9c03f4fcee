// Package file implements the Provider interface as a JSON document on local disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/swap357/cirunner/internal/provider"
	"github.com/swap357/cirunner/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Provider = (*FileProvider)(nil)

// DefaultPath is the state file used when none is configured.
const DefaultPath = ".ci_state.json"

// FileProvider stores the state document as indented JSON. Writes go to a
// temporary file in the same directory which is then renamed over the target.
type FileProvider struct {
	path string
}

// New creates a FileProvider for path, or DefaultPath when path is empty.
func New(path string) *FileProvider {
	if path == "" {
		path = DefaultPath
	}
	return &FileProvider{path: path}
}

// Path returns the state file location.
func (p *FileProvider) Path() string { return p.path }

// Start is a no-op; the file is created on first save.
func (p *FileProvider) Start(_ context.Context) error { return nil }

// Stop is a no-op.
func (p *FileProvider) Stop(_ context.Context) error { return nil }

// Load reads the state file. A missing or empty file yields an empty document.
func (p *FileProvider) Load(_ context.Context) (types.StateDocument, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.StateDocument{}, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if len(data) == 0 {
		return types.StateDocument{}, nil
	}

	doc := types.StateDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", p.path, err)
	}
	return doc, nil
}

// Save atomically replaces the state file with doc.
func (p *FileProvider) Save(_ context.Context, doc types.StateDocument) error {
	if doc == nil {
		doc = types.StateDocument{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
