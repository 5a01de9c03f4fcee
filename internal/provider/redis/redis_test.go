//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap357/cirunner/internal/provider/providertest"
	"github.com/swap357/cirunner/pkg/types"
)

func setupTestProvider(t *testing.T) *RedisProvider {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	prefix := fmt.Sprintf("cirunner-test-%d:", time.Now().UnixNano())
	prov := NewFromClient(client, prefix)

	t.Cleanup(func() {
		client.Del(ctx, prov.stateKey())
		client.Close()
	})
	return prov
}

func TestStateRoundTrip(t *testing.T) {
	prov := setupTestProvider(t)
	ctx := context.Background()

	doc, err := prov.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc)

	want := types.StateDocument{
		"llvmdev":              {RunID: 1, Completed: true, Conclusion: types.ConclusionSuccess},
		"numba_conda_linux-64": {RunID: 2},
	}
	require.NoError(t, prov.Save(ctx, want))

	got, err := prov.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestConformance(t *testing.T) {
	providertest.RunAll(t, setupTestProvider(t))
}
