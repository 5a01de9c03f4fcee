package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/swap357/cirunner/internal/metrics"
)

// Download fetches every artifact of the successful run bound to key into dest.
func (e *Engine) Download(ctx context.Context, key, repo, dest string) error {
	rec, err := e.record(ctx, key)
	if err != nil {
		return err
	}
	if !rec.Succeeded() {
		return fmt.Errorf("%w: cannot download %s: no successful run on %s", ErrNothingToDownload, key, repo)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	ctx, span := e.startSpan(ctx, "cirunner.download", key, rec.RunID)
	e.logger.Info("downloading artifacts", "stage", key, "repo", repo, "run_id", rec.RunID, "dest", dest)
	err = e.cp.DownloadArtifacts(ctx, repo, rec.RunID, dest)
	if err != nil {
		if ctx.Err() != nil {
			err = cancelled(ctx, "downloading "+key)
		} else {
			err = fmt.Errorf("stage %s: %w", key, err)
		}
	}
	endSpan(span, err)
	if err != nil {
		return err
	}
	metrics.Inc(ctx, e.metrics.Downloads, key)
	return nil
}
