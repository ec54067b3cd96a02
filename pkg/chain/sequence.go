package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/pipex-go/pipex/pkg/record"
)

// TransformerSequence is the normal form a run of Pipe-separated
// transformers collapses to. Transform feeds the upstream iterator through
// each member in order: t1 ∥ t2 ∥ t3 behaves like t1 then t2 then t3
// applied to the same stream, not a fan-out/fan-in across three copies of
// it. (Concurrent fan-out across members is fork-join's job, not the
// algebra's; see pkg/forkjoin.)
type TransformerSequence struct {
	members []Transformer
}

// NewTransformerSequence wraps members in their given order. Callers
// should go through Pipe rather than construct this directly so that
// sequence-of-sequence keeps flattening to one level.
func NewTransformerSequence(members []Transformer) *TransformerSequence {
	return &TransformerSequence{members: append([]Transformer(nil), members...)}
}

func (s *TransformerSequence) Members() []Transformer {
	return append([]Transformer(nil), s.members...)
}

func (s *TransformerSequence) ChainHash() string {
	parts := make([]any, len(s.members))
	for i, m := range s.members {
		parts[i] = m
	}
	return Hash("TransformerSequence", parts...)
}

func (s *TransformerSequence) Flatten(tokens *[]Element) {
	for i, m := range s.members {
		if i > 0 {
			*tokens = append(*tokens, MarkerPipe)
		}
		m.Flatten(tokens)
	}
}

func (s *TransformerSequence) Transform(ctx context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	stream := in
	for _, m := range s.members {
		stream = m.Transform(ctx, stream)
	}
	return stream
}

func (s *TransformerSequence) FactoryName() string { return "transformer_sequence" }

func (s *TransformerSequence) FactoryArgs() ([]byte, error) {
	names := make([]string, len(s.members))
	for i, m := range s.members {
		ser, ok := m.(Serializable)
		if !ok {
			return nil, fmt.Errorf("chain: transformer %T is not serializable", m)
		}
		names[i] = ser.FactoryName()
	}
	return json.Marshal(names)
}
