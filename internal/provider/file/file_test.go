package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap357/cirunner/internal/provider/providertest"
	"github.com/swap357/cirunner/pkg/types"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "state.json"))
	doc, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
	assert.NotNil(t, doc)
}

func TestLoad_EmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	doc, err := New(path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path).Load(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing state file")
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	p := New(path)

	doc := types.StateDocument{
		"llvmdev":        {RunID: 101, Completed: true, Conclusion: types.ConclusionSuccess},
		"llvmlite_conda": {RunID: 202},
	}
	require.NoError(t, p.Save(ctx, doc))

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestSave_WireFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	p := New(path)

	require.NoError(t, p.Save(ctx, types.StateDocument{
		"stageA": {RunID: 12345},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stageA": {"run_id": 12345, "completed": false}}`, string(data))
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(filepath.Join(dir, "state.json"))

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, p.Save(ctx, types.StateDocument{"k": {RunID: i}}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestNew_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultPath, New("").Path())
}

func TestConformance(t *testing.T) {
	providertest.RunAll(t, New(filepath.Join(t.TempDir(), "state.json")))
}
