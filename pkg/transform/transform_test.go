package transform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipex-go/pipex/pkg/record"
	"github.com/pipex-go/pipex/pkg/transform"
)

func seqOf(values ...int) func(yield func(record.Record) bool) {
	return func(yield func(record.Record) bool) {
		for i, v := range values {
			if !yield(record.New(recordID(i), "default", v)) {
				return
			}
		}
	}
}

func recordID(i int) string {
	return "r" + string(rune('0'+i))
}

func collectValues(t *testing.T, seq func(yield func(record.Record) bool)) []any {
	t.Helper()
	var out []any
	for r := range seq {
		out = append(out, r.Value())
	}
	return out
}

func TestMapAddsOne(t *testing.T) {
	m := transform.NewMap(func(args ...any) any {
		return args[0].(int) + 1
	})
	out := m.Transform(context.Background(), seqOf(1, 2, 3))
	assert.Equal(t, []any{2, 3, 4}, collectValues(t, out))
}

func TestMapWithHolePlacesValueAtPosition(t *testing.T) {
	concat := transform.NewMap(func(args ...any) any {
		return args[0].(string) + args[1].(string)
	}, "prefix-", transform.Hole)
	out := concat.Transform(context.Background(), seqOf())
	_ = out

	single := func(yield func(record.Record) bool) {
		yield(record.New("r0", "default", "value"))
	}
	result := collectValues(t, concat.Transform(context.Background(), single))
	require.Len(t, result, 1)
	assert.Equal(t, "prefix-value", result[0])
}

func TestFilterKeepsEvens(t *testing.T) {
	f := transform.NewFilter(func(args ...any) any {
		return args[0].(int)%2 == 0
	})
	out := f.Transform(context.Background(), seqOf(1, 2, 3, 4))
	assert.Equal(t, []any{2, 4}, collectValues(t, out))
}

func TestTakeAndDrop(t *testing.T) {
	take := transform.NewTake(2)
	assert.Equal(t, []any{1, 2}, collectValues(t, take.Transform(context.Background(), seqOf(1, 2, 3, 4))))

	drop := transform.NewDrop(2)
	assert.Equal(t, []any{3, 4}, collectValues(t, drop.Transform(context.Background(), seqOf(1, 2, 3, 4))))
}

func TestBatchUnbatchRoundTrip(t *testing.T) {
	batch := transform.NewBatch(3)
	batched := batch.Transform(context.Background(), seqOf(1, 2, 3, 4))

	var groups []record.Record
	for r := range batched {
		groups = append(groups, r)
	}
	require.Len(t, groups, 2)
	first, ok := groups[0].Value().([]record.Record)
	require.True(t, ok)
	assert.Len(t, first, 3)
	second, ok := groups[1].Value().([]record.Record)
	require.True(t, ok)
	assert.Len(t, second, 1)

	unbatch := transform.NewUnbatch()
	replay := func(yield func(record.Record) bool) {
		for _, g := range groups {
			if !yield(g) {
				return
			}
		}
	}
	restored := collectValues(t, unbatch.Transform(context.Background(), replay))
	assert.Equal(t, []any{1, 2, 3, 4}, restored)
}

func TestSelectChannelsRetainsOnlyNamed(t *testing.T) {
	r := record.New("id", "default", 1).Merge(map[string]any{"extra": "x"})
	sel := transform.NewSelectChannels("extra")
	single := func(yield func(record.Record) bool) { yield(r) }
	var out record.Record
	for rr := range sel.Transform(context.Background(), single) {
		out = rr
	}
	assert.ElementsMatch(t, []string{"extra"}, out.Channels())
}

func TestDupCopiesValueIntoChannels(t *testing.T) {
	dup := transform.NewDup("a", "b")
	single := func(yield func(record.Record) bool) { yield(record.New("id", "default", 7)) }
	var out record.Record
	for r := range dup.Transform(context.Background(), single) {
		out = r
	}
	assert.Equal(t, 7, out.Get("a", nil))
	assert.Equal(t, 7, out.Get("b", nil))
}

func TestGrepMatchesSubstring(t *testing.T) {
	g := transform.NewGrep("ell")
	single := func(yield func(record.Record) bool) { yield(record.New("id", "default", "hello")) }
	out := collectValues(t, g.Transform(context.Background(), single))
	assert.Equal(t, []any{"hello"}, out)
}

func TestChainHashStableForIdenticalArgs(t *testing.T) {
	g1 := transform.NewGrep("x")
	g2 := transform.NewGrep("x")
	assert.Equal(t, g1.ChainHash(), g2.ChainHash())

	g3 := transform.NewGrep("y")
	assert.NotEqual(t, g1.ChainHash(), g3.ChainHash())
}
