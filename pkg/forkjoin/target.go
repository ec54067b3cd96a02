package forkjoin

import (
	"context"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Target is the sub-chain a ForkJoin operator runs per worker: either a
// bare Transformer or a Transformer-then-Sink pipeline segment, matching
// the original implementation's "target_chain must be Sink or
// Transformer" constraint. Run adapts whichever role was given to a
// single uniform call.
type Target interface {
	chain.PipeChain
	Run(ctx context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record]
}

type transformerTarget struct {
	chain.Transformer
}

func (t transformerTarget) Run(ctx context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return t.Transform(ctx, in)
}

// FromTransformer adapts a Transformer into a fork-join Target.
func FromTransformer(t chain.Transformer) Target { return transformerTarget{t} }

type sinkTarget struct {
	chain.Sink
}

func (s sinkTarget) Run(ctx context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return s.Process(ctx, in)
}

// FromSink adapts a Sink into a fork-join Target: each worker persists its
// share of the stream independently (callers are responsible for the
// sink being safe to drive from multiple workers concurrently).
func FromSink(s chain.Sink) Target { return sinkTarget{s} }
