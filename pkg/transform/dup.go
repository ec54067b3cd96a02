package transform

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Dup copies the active value into each of the named channels, leaving
// the active channel itself untouched.
type Dup struct {
	names []string
}

// NewDup builds a Dup transformer for the given channel names.
func NewDup(names ...string) *Dup { return &Dup{names: append([]string(nil), names...)} }

func (d *Dup) ChainHash() string { return chain.Hash("dup", d.names) }

func (d *Dup) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, d) }

func (d *Dup) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			value := r.Value()
			values := make(map[string]any, len(d.names))
			for _, n := range d.names {
				values[n] = value
			}
			if !yield(r.Merge(values)) {
				return
			}
		}
	}
}

func (d *Dup) FactoryName() string { return "dup" }

func (d *Dup) FactoryArgs() ([]byte, error) { return json.Marshal(d.names) }

func init() {
	chain.Register("dup", func(args json.RawMessage) (chain.PipeChain, error) {
		var names []string
		if err := json.Unmarshal(args, &names); err != nil {
			return nil, err
		}
		return NewDup(names...), nil
	})
}
