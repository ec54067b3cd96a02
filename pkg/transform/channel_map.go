package transform

import (
	"context"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// ChannelMap applies fn to the active value and merges the result into a
// named channel, leaving the active pointer and every other channel
// untouched.
type ChannelMap struct {
	channelName string
	curried     curried
	rawArgs     []any
}

// NewChannelMap builds a ChannelMap transformer writing fn's result into
// channelName.
func NewChannelMap(channelName string, fn func(args ...any) any, args ...any) *ChannelMap {
	return &ChannelMap{channelName: channelName, curried: newCurried(fn, args), rawArgs: args}
}

func (c *ChannelMap) ChainHash() string {
	return chain.Hash("channel_map", c.channelName, c.curried.fn, hashArgs(c.rawArgs))
}

func (c *ChannelMap) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, c) }

func (c *ChannelMap) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			newValue := c.curried.call(r.Value())
			if !yield(r.Merge(map[string]any{c.channelName: newValue})) {
				return
			}
		}
	}
}
