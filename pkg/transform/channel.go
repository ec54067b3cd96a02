package transform

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Channel repoints the active channel without touching any atom.
type Channel struct {
	name string
}

// NewChannel builds a Channel transformer that switches the active
// pointer to name.
func NewChannel(name string) *Channel { return &Channel{name: name} }

func (c *Channel) ChainHash() string { return chain.Hash("channel", c.name) }

func (c *Channel) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, c) }

func (c *Channel) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			if !yield(r.WithChannel(c.name)) {
				return
			}
		}
	}
}

func (c *Channel) FactoryName() string { return "channel" }

func (c *Channel) FactoryArgs() ([]byte, error) { return json.Marshal(c.name) }

func init() {
	chain.Register("channel", func(args json.RawMessage) (chain.PipeChain, error) {
		var name string
		if err := json.Unmarshal(args, &name); err != nil {
			return nil, err
		}
		return NewChannel(name), nil
	})
}
