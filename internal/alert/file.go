package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/swap357/cirunner/pkg/types"
)

const journalFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// FileSink records each alert as one JSON line in a local journal file.
// A line is synced to disk before Send returns, so a later invocation sees
// every alert of the ones before it.
type FileSink struct {
	mu      sync.Mutex
	journal string
}

// NewFileSink checks that the journal at path can be appended to, creating
// it and its directory when missing.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating alert journal directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, journalFlags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert journal %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing alert journal %s: %w", path, err)
	}
	return &FileSink{journal: path}, nil
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return "file" }

// Send appends the alert to the journal. Nothing is written once ctx is done.
func (s *FileSink) Send(ctx context.Context, a types.Alert) error {
	line, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.journal, journalFlags, 0o644)
	if err != nil {
		return fmt.Errorf("opening alert journal %s: %w", s.journal, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("appending to alert journal %s: %w", s.journal, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("syncing alert journal %s: %w", s.journal, err)
	}
	return f.Close()
}
