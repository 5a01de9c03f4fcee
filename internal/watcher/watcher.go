// Package watcher implements interval polling and bounded backoff used while
// waiting on remote runs.
package watcher

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is used when a Poller is created with a non-positive interval.
const DefaultInterval = 15 * time.Second

// CheckFunc reports whether the awaited condition holds.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Poller re-evaluates a CheckFunc on a fixed interval until it reports done.
type Poller struct {
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Poller.
func New(interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{interval: interval, logger: logger}
}

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration { return p.interval }

// Until runs check immediately and then on every tick. It returns nil once
// check reports done, the first error check returns, or ctx.Err() when the
// context is cancelled.
func (p *Poller) Until(ctx context.Context, check CheckFunc) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	polls := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		polls++
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			p.logger.Debug("poll condition met", "polls", polls)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
