package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Grep keeps records whose active value, stringified, contains pattern.
type Grep struct {
	pattern string
}

// NewGrep builds a Grep transformer for pattern.
func NewGrep(pattern string) *Grep { return &Grep{pattern: pattern} }

func (g *Grep) ChainHash() string { return chain.Hash("grep", g.pattern) }

func (g *Grep) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, g) }

func (g *Grep) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			if !strings.Contains(fmt.Sprintf("%v", r.Value()), g.pattern) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

func (g *Grep) FactoryName() string { return "grep" }

func (g *Grep) FactoryArgs() ([]byte, error) { return json.Marshal(g.pattern) }

func init() {
	chain.Register("grep", func(args json.RawMessage) (chain.PipeChain, error) {
		var pattern string
		if err := json.Unmarshal(args, &pattern); err != nil {
			return nil, err
		}
		return NewGrep(pattern), nil
	})
}
