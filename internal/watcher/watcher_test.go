package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/swap357/cirunner/pkg/types"
)

func TestUntil_ImmediateSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	calls := 0
	p := New(time.Hour, nil)
	err := p.Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntil_PollsUntilDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	calls := 0
	p := New(5*time.Millisecond, nil)
	err := p.Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntil_CheckError(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("boom")
	p := New(5*time.Millisecond, nil)
	err := p.Until(context.Background(), func(context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestUntil_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	p := New(5*time.Millisecond, nil)

	calls := 0
	err := p.Until(ctx, func(context.Context) (bool, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestNew_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(0, nil).Interval())
}

func TestCalculateBackoff_Fixed(t *testing.T) {
	policy := types.RetryPolicy{MaxAttempts: 5, BackoffSeconds: 10}
	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 10*time.Second, CalculateBackoff(policy, attempt))
	}
}

func TestCalculateBackoff_Exponential(t *testing.T) {
	policy := types.RetryPolicy{BackoffSeconds: 10, BackoffMultiplier: 2}
	assert.Equal(t, 10*time.Second, CalculateBackoff(policy, 1))
	assert.Equal(t, 20*time.Second, CalculateBackoff(policy, 2))
	assert.Equal(t, 40*time.Second, CalculateBackoff(policy, 3))
	assert.Equal(t, 600*time.Second, CalculateBackoff(policy, 20))
}

func TestSleep_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestSleep_Elapses(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))
}

func TestDefaultResolvePolicy(t *testing.T) {
	p := DefaultResolvePolicy()
	assert.Equal(t, 6, p.MaxAttempts)
	assert.Equal(t, 10, p.BackoffSeconds)
}
