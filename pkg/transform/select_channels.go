package transform

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// SelectChannels retains only the named channels on every record.
type SelectChannels struct {
	names []string
}

// NewSelectChannels builds a SelectChannels transformer for the given
// channel names.
func NewSelectChannels(names ...string) *SelectChannels {
	return &SelectChannels{names: append([]string(nil), names...)}
}

func (s *SelectChannels) ChainHash() string { return chain.Hash("select_channels", s.names) }

func (s *SelectChannels) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, s) }

func (s *SelectChannels) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			if !yield(r.SelectChannels(s.names...)) {
				return
			}
		}
	}
}

func (s *SelectChannels) FactoryName() string { return "select_channels" }

func (s *SelectChannels) FactoryArgs() ([]byte, error) { return json.Marshal(s.names) }

func init() {
	chain.Register("select_channels", func(args json.RawMessage) (chain.PipeChain, error) {
		var names []string
		if err := json.Unmarshal(args, &names); err != nil {
			return nil, err
		}
		return NewSelectChannels(names...), nil
	})
}
