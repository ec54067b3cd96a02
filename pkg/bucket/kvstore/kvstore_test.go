package kvstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipex-go/pipex/pkg/bucket/kvstore"
	"github.com/pipex-go/pipex/pkg/record"
)

func TestSaveAndLoadRecordRoundTrips(t *testing.T) {
	ctx := context.Background()
	backend, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	defer backend.Close()

	r := record.New("id1", "default", 7).Merge(map[string]any{"blob": []byte{9, 8, 7}})
	require.NoError(t, backend.SaveRecord(ctx, r))

	ids, err := backend.LoadIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id1"}, ids)

	loaded, err := backend.LoadRecord(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, float64(7), toFloat(loaded.Value()))
	assert.Equal(t, []byte{9, 8, 7}, loaded.Get("blob", nil))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return -1
	}
}

func TestMetadataRoundTrips(t *testing.T) {
	ctx := context.Background()
	backend, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	defer backend.Close()

	metadata, err := backend.LoadMetadata(ctx)
	require.NoError(t, err)
	assert.Nil(t, metadata.DataHash)

	hash := "abc"
	metadata.DataHash = &hash
	require.NoError(t, backend.FlushMetadata(ctx, metadata))

	reloaded, err := backend.LoadMetadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, reloaded.DataHash)
	assert.Equal(t, "abc", *reloaded.DataHash)
}
