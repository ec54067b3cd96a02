package forkjoin_test

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/forkjoin"
	"github.com/pipex-go/pipex/pkg/record"
)

// doubler is a minimal Transformer fixture, grounded on chain_test.go's
// fakeTransformer pattern: multiplies each record's value by two.
type doubler struct{}

func (doubler) ChainHash() string { return chain.Hash("doubler") }
func (doubler) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, chain.PipeChain(doubler{})) }
func (doubler) FactoryName() string             { return "doubler" }
func (doubler) FactoryArgs() ([]byte, error)    { return json.Marshal(struct{}{}) }

func (doubler) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			if !yield(r.WithValue(r.Value().(int) * 2)) {
				return
			}
		}
	}
}

// explodes fails on a specific value, to exercise mid-stream error
// propagation through an *chain.IterationError panic.
type explodes struct{ failOn int }

func (e explodes) ChainHash() string { return chain.Hash("explodes", e.failOn) }
func (e explodes) Flatten(tokens *[]chain.Element) {
	*tokens = append(*tokens, chain.PipeChain(e))
}
func (e explodes) FactoryName() string          { return "explodes" }
func (e explodes) FactoryArgs() ([]byte, error) { return json.Marshal(e.failOn) }

func (e explodes) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			if r.Value().(int) == e.failOn {
				panic(fmt.Sprintf("boom on %d", e.failOn))
			}
			if !yield(r) {
				return
			}
		}
	}
}

func seqOfInts(values ...int) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for i, v := range values {
			if !yield(record.New(fmt.Sprintf("r%d", i), "default", v)) {
				return
			}
		}
	}
}

func collectInts(seq iter.Seq[record.Record]) []int {
	var out []int
	for r := range seq {
		out = append(out, r.Value().(int))
	}
	return out
}

// TestForkJoinThreadedPreservesMultiset checks the spec's multiset-equality
// invariant: threaded fork-join produces exactly the transformed values,
// though not necessarily in input order, since multiple workers race to
// claim chunks.
func TestForkJoinThreadedPreservesMultiset(t *testing.T) {
	fj := forkjoin.Threaded(forkjoin.FromTransformer(doubler{}), forkjoin.Options{
		NumWorkers:   4,
		ChunkSize:    1,
		PollInterval: 20 * time.Millisecond,
	})

	in := seqOfInts(1, 2, 3, 4, 5, 6, 7, 8)
	var out []int
	err := chain.Drain(func(yield func(record.Record) bool) {
		for r := range fj.Transform(context.Background(), in) {
			out = append(out, r.Value().(int))
			if !yield(r) {
				return
			}
		}
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 4, 6, 8, 10, 12, 14, 16}, out)
}

func TestForkJoinSingleWorkerPreservesOrder(t *testing.T) {
	fj := forkjoin.OnBgThread(forkjoin.FromTransformer(doubler{}), forkjoin.Options{
		ChunkSize:    1,
		PollInterval: 20 * time.Millisecond,
	})
	out := collectInts(fj.Transform(context.Background(), seqOfInts(1, 2, 3, 4)))
	assert.Equal(t, []int{2, 4, 6, 8}, out)
}

func TestForkJoinPropagatesWorkerError(t *testing.T) {
	fj := forkjoin.Threaded(forkjoin.FromTransformer(explodes{failOn: 3}), forkjoin.Options{
		NumWorkers:   1,
		ChunkSize:    1,
		PollInterval: 20 * time.Millisecond,
	})
	err := chain.Drain(fj.Transform(context.Background(), seqOfInts(1, 2, 3, 4)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom on 3")
}

func TestForkJoinIgnoreErrorSwallowsFailure(t *testing.T) {
	fj := forkjoin.Threaded(forkjoin.FromTransformer(explodes{failOn: 3}), forkjoin.Options{
		NumWorkers:   1,
		ChunkSize:    1,
		PollInterval: 20 * time.Millisecond,
		IgnoreError:  true,
	})
	err := chain.Drain(fj.Transform(context.Background(), seqOfInts(1, 2, 3, 4)))
	assert.NoError(t, err)
}

func TestForkJoinChainHashDistinguishesMode(t *testing.T) {
	threaded := forkjoin.Threaded(forkjoin.FromTransformer(doubler{}), forkjoin.Options{})
	parallel := forkjoin.Parallel(forkjoin.FromTransformer(doubler{}), forkjoin.Options{})
	assert.NotEqual(t, threaded.ChainHash(), parallel.ChainHash())
}

// TestForkJoinThreadedReturnsToGoroutineBaseline checks that a threaded
// pool's worker and producer goroutines all exit once the stream is
// drained: the Go analog of the spec's "child process count returns to
// zero" invariant, since a threaded pool has no OS processes to count.
func TestForkJoinThreadedReturnsToGoroutineBaseline(t *testing.T) {
	before := runtime.NumGoroutine()

	fj := forkjoin.Threaded(forkjoin.FromTransformer(doubler{}), forkjoin.Options{
		NumWorkers:   4,
		ChunkSize:    1,
		PollInterval: 20 * time.Millisecond,
	})
	err := chain.Drain(fj.Transform(context.Background(), seqOfInts(1, 2, 3, 4, 5, 6, 7, 8)))
	require.NoError(t, err)

	var after int
	for i := 0; i < 20; i++ {
		time.Sleep(10 * time.Millisecond)
		after = runtime.NumGoroutine()
		if after <= before {
			break
		}
	}
	assert.LessOrEqual(t, after, before)
}
