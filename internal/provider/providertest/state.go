package providertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap357/cirunner/internal/provider"
	"github.com/swap357/cirunner/pkg/types"
)

// TestLoadEmpty verifies that a provider with nothing stored returns an empty,
// writable document.
func TestLoadEmpty(t *testing.T, prov provider.Provider) {
	doc, err := prov.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Empty(t, doc)
}

// TestSaveLoadRoundTrip verifies every record shape survives persistence.
func TestSaveLoadRoundTrip(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	want := types.StateDocument{
		"llvmdev":            {RunID: 101, Completed: true, Conclusion: types.ConclusionSuccess},
		"llvmlite_conda":     {RunID: 102, Completed: true, Conclusion: types.ConclusionFailure},
		"numba_conda_win-64": {RunID: 103},
	}
	require.NoError(t, prov.Save(ctx, want))

	got, err := prov.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestSaveReplacesDocument verifies Save is a whole-document replace: keys
// absent from the new document are gone afterwards.
func TestSaveReplacesDocument(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	require.NoError(t, prov.Save(ctx, types.StateDocument{
		"a": {RunID: 1},
		"b": {RunID: 2},
	}))
	require.NoError(t, prov.Save(ctx, types.StateDocument{
		"b": {RunID: 2, Completed: true, Conclusion: types.ConclusionSuccess},
	}))

	got, err := prov.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StateDocument{
		"b": {RunID: 2, Completed: true, Conclusion: types.ConclusionSuccess},
	}, got)
}

// TestSaveDetachesCaller verifies later mutation of a saved or loaded
// document does not leak into the store.
func TestSaveDetachesCaller(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	doc := types.StateDocument{"a": {RunID: 1}}
	require.NoError(t, prov.Save(ctx, doc))
	doc["a"] = types.StageRecord{RunID: 99}
	doc["z"] = types.StageRecord{RunID: 100}

	loaded, err := prov.Load(ctx)
	require.NoError(t, err)
	loaded["y"] = types.StageRecord{RunID: 5}

	again, err := prov.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StateDocument{"a": {RunID: 1}}, again)
}

// TestSaveEmptyDocument verifies clearing every key leaves an empty document.
func TestSaveEmptyDocument(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	require.NoError(t, prov.Save(ctx, types.StateDocument{"a": {RunID: 1}}))
	require.NoError(t, prov.Save(ctx, types.StateDocument{}))

	got, err := prov.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
