package transform

import (
	"context"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Filter drops records whose active value makes pred return a falsy
// (non-true, zero, empty, or nil) result, the same coercion the original
// implementation's truthiness check applies to an arbitrary predicate
// result.
type Filter struct {
	curried curried
	rawArgs []any
}

// NewFilter builds a Filter transformer from pred and its extra arguments.
func NewFilter(pred func(args ...any) any, args ...any) *Filter {
	return &Filter{curried: newCurried(pred, args), rawArgs: args}
}

func (f *Filter) ChainHash() string {
	return chain.Hash("filter", f.curried.fn, hashArgs(f.rawArgs))
}

func (f *Filter) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, f) }

func (f *Filter) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			if !truthy(f.curried.call(r.Value())) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// truthy applies the pipeline's loose truthiness rule to a predicate's
// result: nil, false, zero numbers, and empty strings are falsy.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case float32:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
