package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithChannelChangesOnlyActivePointer(t *testing.T) {
	r := New("r1", "a", 1).Merge(map[string]any{"b": 2})

	moved := r.WithChannel("a").WithChannel("b")

	assert.Equal(t, "b", moved.ActiveChannel())
	assert.Equal(t, r.Get("a", nil), moved.Get("a", nil))
	assert.Equal(t, r.Get("b", nil), moved.Get("b", nil))
}

func TestMergeUpsertsAndBumpsTimestamp(t *testing.T) {
	r := New("r1", "a", 1)
	merged := r.Merge(map[string]any{"b": 2})

	assert.Equal(t, 1, merged.Get("a", nil))
	assert.Equal(t, 2, merged.Get("b", nil))
	assert.GreaterOrEqual(t, merged.Timestamp(), r.Timestamp())
}

func TestWithIDIsOnlyIdentityRewrite(t *testing.T) {
	r := New("r1", "a", 1)
	renamed := r.WithID("r2")

	assert.Equal(t, "r2", renamed.ID())
	assert.Equal(t, "r1", r.ID(), "original record must remain observable")
}

func TestWithValueInfersFormatFromActiveChannel(t *testing.T) {
	r := New("r1", "image_thumb", NDArray{Shape: []int{1}})
	atom, ok := r.Atom()
	require.True(t, ok)
	assert.Equal(t, FormatImage, atom.Format)

	updated := r.WithValue(NDArray{Shape: []int{2}})
	updatedAtom, ok := updated.Atom()
	require.True(t, ok)
	assert.Equal(t, FormatImage, updatedAtom.Format)
}

func TestMissingActiveChannelYieldsNilValue(t *testing.T) {
	r := New("r1", "a", 1).WithChannel("missing")
	assert.Nil(t, r.Value())
}

func TestMutationsDoNotAliasOriginal(t *testing.T) {
	r := New("r1", "a", 1)
	_ = r.Merge(map[string]any{"a": 99})

	assert.Equal(t, 1, r.Get("a", nil), "mutating a derived record must not affect the original")
}

func TestSelectChannelsDropsActiveWhenNotKept(t *testing.T) {
	r := New("r1", "a", 1).Merge(map[string]any{"b": 2})
	selected := r.SelectChannels("b")

	assert.Equal(t, "", selected.ActiveChannel())
	assert.Equal(t, []string{"b"}, selected.Channels())
}
