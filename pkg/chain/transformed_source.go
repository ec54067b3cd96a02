package chain

import (
	"context"
	"iter"

	"github.com/pipex-go/pipex/pkg/record"
)

// TransformedSource is the normal form of "source ↦ transformer": a Source
// that lazily applies transformer to whatever source generates.
type TransformedSource struct {
	source      Source
	transformer Transformer
}

// NewTransformedSource pairs source with transformer. Prefer Redirect over
// calling this directly so repeated redirection keeps collapsing to one
// TransformedSource with an inner TransformerSequence, rather than nesting.
func NewTransformedSource(source Source, transformer Transformer) *TransformedSource {
	return &TransformedSource{source: source, transformer: transformer}
}

func (t *TransformedSource) Source() Source           { return t.source }
func (t *TransformedSource) Transformer() Transformer  { return t.transformer }

func (t *TransformedSource) ChainHash() string {
	return Hash("TransformedSource", t.source, t.transformer)
}

func (t *TransformedSource) Flatten(tokens *[]Element) {
	t.source.Flatten(tokens)
	*tokens = append(*tokens, MarkerRedirect)
	t.transformer.Flatten(tokens)
}

func (t *TransformedSource) Generate(ctx context.Context) iter.Seq[record.Record] {
	return t.transformer.Transform(ctx, t.source.Generate(ctx))
}

func (t *TransformedSource) FetchSourceDataVersion(ctx context.Context) SourceDataVersion {
	return t.source.FetchSourceDataVersion(ctx)
}

// WithSink redirects this TransformedSource into sink, yielding the
// Pipeline normal form. This is what Redirect calls when the next stage in
// a chain is a Sink and current already collapsed to a TransformedSource.
func (t *TransformedSource) WithSink(sink Sink) *Pipeline {
	return NewPipeline(t, sink)
}
