package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/swap357/cirunner/pkg/types"
)

// WaitFor polls check every 10ms until it returns true or timeout is reached.
func WaitFor(t *testing.T, timeout time.Duration, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition: %s", msg)
}

// AssertStatus checks the lifecycle status stored for key.
func AssertStatus(t *testing.T, prov *MockProvider, key string, want types.StageStatus) bool {
	t.Helper()
	rec, _ := prov.Record(key)
	return assert.Equal(t, want, rec.Status(), "status of %s", key)
}
