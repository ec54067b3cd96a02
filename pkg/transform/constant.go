package transform

import (
	"context"
	"encoding/json"
	"iter"
	"sort"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Constant writes fixed values into records: value (if set) replaces the
// active channel's value, and channelValues are merged in regardless.
type Constant struct {
	hasValue     bool
	value        any
	channelValues map[string]any
}

// NewConstant builds a Constant transformer. Pass nil, false for hasValue
// to only merge channelValues without touching the active channel.
func NewConstant(hasValue bool, value any, channelValues map[string]any) *Constant {
	return &Constant{hasValue: hasValue, value: value, channelValues: channelValues}
}

func (c *Constant) ChainHash() string {
	return chain.Hash("constant", c.hasValue, c.value, mapHashable(c.channelValues))
}

func (c *Constant) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, c) }

func (c *Constant) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			values := make(map[string]any, len(c.channelValues)+1)
			for k, v := range c.channelValues {
				values[k] = v
			}
			if c.hasValue {
				values[r.ActiveChannel()] = c.value
			}
			if !yield(r.Merge(values)) {
				return
			}
		}
	}
}

func mapHashable(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, m[k])
	}
	return out
}

type constantDef struct {
	HasValue      bool           `json:"has_value"`
	Value         any            `json:"value,omitempty"`
	ChannelValues map[string]any `json:"channel_values,omitempty"`
}

func (c *Constant) FactoryName() string { return "constant" }

func (c *Constant) FactoryArgs() ([]byte, error) {
	return json.Marshal(constantDef{HasValue: c.hasValue, Value: c.value, ChannelValues: c.channelValues})
}

func init() {
	chain.Register("constant", func(args json.RawMessage) (chain.PipeChain, error) {
		var d constantDef
		if err := json.Unmarshal(args, &d); err != nil {
			return nil, err
		}
		return NewConstant(d.HasValue, d.Value, d.ChannelValues), nil
	})
}
