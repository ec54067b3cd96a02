package chain

import (
	"context"
	"iter"

	"github.com/pipex-go/pipex/pkg/record"
)

// TransformedSink is the normal form of "transformer ↦ sink" before a
// source has been attached. It implements both Transformer-consuming Sink
// behavior and, structurally, the Source interface: Generate yields an
// empty stream, since a TransformedSink on its own has nothing to produce.
// The point of implementing Source is purely algebraic — a TransformedSink
// can stand on the right of Redirect, whose flatten-and-reparse closes it
// into a Pipeline once a source is on its left, without a special case,
// the same way the original implementation declares TransformedSink a
// subclass of both Source and Sink so redirection stays uniform.
type TransformedSink struct {
	transformer Transformer
	sink        Sink
}

// NewTransformedSink pairs transformer with sink.
func NewTransformedSink(transformer Transformer, sink Sink) *TransformedSink {
	return &TransformedSink{transformer: transformer, sink: sink}
}

func (t *TransformedSink) Transformer() Transformer { return t.transformer }
func (t *TransformedSink) Sink() Sink               { return t.sink }

func (t *TransformedSink) ChainHash() string {
	return Hash("TransformedSink", t.transformer, t.sink)
}

func (t *TransformedSink) Flatten(tokens *[]Element) {
	t.transformer.Flatten(tokens)
	*tokens = append(*tokens, MarkerRedirect)
	t.sink.Flatten(tokens)
}

// Generate always yields an empty stream; a TransformedSink only becomes
// runnable once WithSource closes it into a Pipeline.
func (t *TransformedSink) Generate(context.Context) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {}
}

func (t *TransformedSink) FetchSourceDataVersion(context.Context) SourceDataVersion {
	return SourceDataVersion{}
}

func (t *TransformedSink) Process(ctx context.Context, upstream iter.Seq[record.Record]) iter.Seq[record.Record] {
	return t.sink.Process(ctx, t.transformer.Transform(ctx, upstream))
}

func (t *TransformedSink) FetchSinkDataVersion(ctx context.Context) SinkDataVersion {
	return t.sink.FetchSinkDataVersion(ctx)
}

// WithSource closes this TransformedSink by attaching source on the left,
// yielding the Pipeline normal form.
func (t *TransformedSink) WithSource(source Source) *Pipeline {
	return NewPipeline(NewTransformedSource(source, t.transformer), t.sink)
}
