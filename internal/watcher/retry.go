package watcher

import (
	"context"
	"math"
	"time"

	"github.com/swap357/cirunner/pkg/types"
)

const maxBackoffSeconds = 600

// DefaultResolvePolicy bounds the lookup of a just-dispatched run: six
// attempts, ten seconds apart.
func DefaultResolvePolicy() types.RetryPolicy {
	return types.RetryPolicy{
		MaxAttempts:    6,
		BackoffSeconds: 10,
	}
}

// CalculateBackoff returns the wait before a given attempt (1-based). A
// multiplier of 1 or less yields a fixed backoff; larger values grow it as
// base * multiplier^(attempt-1), capped at ten minutes.
func CalculateBackoff(policy types.RetryPolicy, attempt int) time.Duration {
	base := float64(policy.BackoffSeconds)
	if attempt > 1 && policy.BackoffMultiplier > 1 {
		base *= math.Pow(policy.BackoffMultiplier, float64(attempt-1))
	}
	if base > maxBackoffSeconds {
		base = maxBackoffSeconds
	}
	return time.Duration(base) * time.Second
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
