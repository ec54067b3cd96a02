package dirstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipex-go/pipex/pkg/bucket/dirstore"
	"github.com/pipex-go/pipex/pkg/record"
)

func TestSaveAndLoadRecordRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := dirstore.NewStore(t.TempDir())
	backend := store.Bucket("scope-a")

	r := record.New("id1", "default", 42).
		Merge(map[string]any{"note": "hello world"}).
		Merge(map[string]any{"blob": []byte{1, 2, 3}})

	require.NoError(t, backend.SaveRecord(ctx, r))

	ids, err := backend.LoadIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id1"}, ids)

	loaded, err := backend.LoadRecord(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, float64(42), loaded.Value())
	assert.Equal(t, "hello world", loaded.Get("note", nil))
	assert.Equal(t, []byte{1, 2, 3}, loaded.Get("blob", nil))
}

func TestFlushMetadataRefusesConcurrentTmpFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := dirstore.NewStore(dir)
	backend := store.Bucket("scope-b")

	metadata, err := backend.LoadMetadata(ctx)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scope-b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scope-b", "pbucket.json.tmp"), []byte("{}"), 0o644))

	err = backend.FlushMetadata(ctx, metadata)
	assert.Error(t, err)
}

func TestMetadataSurvivesAcrossStoreInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend := dirstore.NewStore(dir).Bucket("scope-c")

	metadata, err := backend.LoadMetadata(ctx)
	require.NoError(t, err)
	require.NoError(t, backend.FlushMetadata(ctx, metadata))

	other := dirstore.NewStore(dir).Bucket("scope-c")
	reloaded, err := other.LoadMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, metadata.MetaVersion, reloaded.MetaVersion)
}
