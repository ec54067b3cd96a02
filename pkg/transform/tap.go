package transform

import (
	"context"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Tap invokes fn for its side effect and re-yields the record unchanged.
type Tap struct {
	curried curried
	rawArgs []any
}

// NewTap builds a Tap transformer from fn and its extra arguments.
func NewTap(fn func(args ...any) any, args ...any) *Tap {
	return &Tap{curried: newCurried(fn, args), rawArgs: args}
}

func (t *Tap) ChainHash() string {
	return chain.Hash("tap", t.curried.fn, hashArgs(t.rawArgs))
}

func (t *Tap) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, t) }

func (t *Tap) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			t.curried.call(r.Value())
			if !yield(r) {
				return
			}
		}
	}
}
