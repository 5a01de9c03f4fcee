package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/swap357/cirunner/pkg/types"
)

// ParseSeed parses a "key:runid" manual seed.
func ParseSeed(s string) (types.Seed, error) {
	key, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || key == "" || strings.Contains(id, ":") {
		return types.Seed{}, fmt.Errorf("%w: invalid --reuse-run %q, want STAGE_KEY:RUN_ID", ErrConfig, s)
	}
	runID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || runID <= 0 {
		return types.Seed{}, fmt.Errorf("%w: invalid run id in --reuse-run %q", ErrConfig, s)
	}
	return types.Seed{StageKey: key, RunID: runID}, nil
}

// Seed binds keys to existing runs as unfinished records, overwriting
// whatever was recorded. The next wait on each key watches the seeded run.
func (e *Engine) Seed(ctx context.Context, seeds []types.Seed) error {
	if len(seeds) == 0 {
		return nil
	}
	doc, err := e.State(ctx)
	if err != nil {
		return err
	}
	for _, s := range seeds {
		doc[s.StageKey] = types.StageRecord{RunID: s.RunID}
		e.logger.Info("seeded stage", "stage", s.StageKey, "run_id", s.RunID)
	}
	if err := e.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// Reset removes the records of keys so the next invocation dispatches anew.
// It returns the keys that had a record.
func (e *Engine) Reset(ctx context.Context, keys []string) ([]string, error) {
	doc, err := e.State(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, k := range keys {
		if _, ok := doc[k]; ok {
			delete(doc, k)
			removed = append(removed, k)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := e.store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("saving state: %w", err)
	}
	return removed, nil
}
