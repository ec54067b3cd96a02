package chain

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/pipex-go/pipex/pkg/record"
)

// identityTransformer re-yields its input unchanged. Redirect synthesizes
// one whenever a bare Source is redirected straight into a Sink, so that
// case can still build the normal Pipeline{TransformedSource, Sink} shape
// instead of special-casing a Source-directly-to-Sink pipeline type.
type identityTransformer struct{}

// Identity returns the shared stateless identity transformer.
func Identity() Transformer { return identityTransformer{} }

func (identityTransformer) ChainHash() string { return Hash("Identity") }

func (identityTransformer) Flatten(tokens *[]Element) {
	*tokens = append(*tokens, identityTransformer{})
}

func (identityTransformer) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return in
}

func (identityTransformer) FactoryName() string { return "identity" }

func (identityTransformer) FactoryArgs() ([]byte, error) { return json.Marshal(struct{}{}) }

func init() {
	Register("identity", func(json.RawMessage) (PipeChain, error) {
		return identityTransformer{}, nil
	})
}
