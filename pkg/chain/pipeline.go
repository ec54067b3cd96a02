package chain

import (
	"context"
	"iter"

	"github.com/pipex-go/pipex/pkg/record"
)

// Pipeline is the fully closed normal form: source ↦ transformer ↦ sink.
// It also implements Source so a Pipeline can be redirected further, which
// is what lets one pipeline's sink feed a downstream pipeline as a
// "buffered boundary" without a special case in the algebra.
//
// Pipeline carries no rewrite-skip logic of its own: Execute always
// generates from the source and hands the result to the sink, mirroring
// the original implementation's Pipeline.execute, which unconditionally
// calls self.sink.process(our, self.transformed_source). A sink that
// wants to skip regenerating unchanged data (bucket.Bucket) makes that
// decision itself, on its own entry point (Bucket.Pipe), the same way
// the original's Bucket.process owns that decision rather than Pipeline.
type Pipeline struct {
	transformedSource *TransformedSource
	sink              Sink
}

// NewPipeline closes transformedSource into sink.
func NewPipeline(transformedSource *TransformedSource, sink Sink) *Pipeline {
	return &Pipeline{transformedSource: transformedSource, sink: sink}
}

func (p *Pipeline) Source() Source           { return p.transformedSource.source }
func (p *Pipeline) Transformer() Transformer { return p.transformedSource.transformer }
func (p *Pipeline) Sink() Sink               { return p.sink }

func (p *Pipeline) ChainHash() string {
	return Hash("Pipeline", p.transformedSource, p.sink)
}

func (p *Pipeline) Flatten(tokens *[]Element) {
	p.transformedSource.Flatten(tokens)
	*tokens = append(*tokens, MarkerRedirect)
	p.sink.Flatten(tokens)
}

// Generate lets a Pipeline act as a Source for a further downstream
// redirection: it runs the transformed-source side through the sink and
// yields what the sink re-yields, so the sink is the boundary records
// cross on their way downstream.
func (p *Pipeline) Generate(ctx context.Context) iter.Seq[record.Record] {
	return p.sink.Process(ctx, p.transformedSource.Generate(ctx))
}

func (p *Pipeline) FetchSourceDataVersion(ctx context.Context) SourceDataVersion {
	if sinkSource, ok := p.sink.(Source); ok {
		return sinkSource.FetchSourceDataVersion(ctx)
	}
	return p.transformedSource.FetchSourceDataVersion(ctx)
}

// Execute runs the pipeline to completion, returning the sink's re-yielded
// stream for inspection. It always generates from the source and feeds the
// result to the sink; a sink that can skip unchanged work owns that
// decision itself (see bucket.Bucket.Pipe), the same way the original
// implementation's Pipeline.execute never second-guesses its sink.
func (p *Pipeline) Execute(ctx context.Context) (iter.Seq[record.Record], error) {
	return p.sink.Process(ctx, p.transformedSource.Generate(ctx)), nil
}

// Drain consumes seq to completion for callers that only care whether it
// succeeded, converting an IterationError panic raised by the sequence
// (e.g. a fork-join transformer mid-stream, or an instrumented source)
// into a returned error instead of letting it escape as a panic. Any
// other panic value is re-raised unchanged.
func Drain(seq iter.Seq[record.Record]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*IterationError); ok {
				err = ie
				return
			}
			panic(r)
		}
	}()
	for range seq {
	}
	return nil
}
