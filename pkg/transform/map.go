package transform

import (
	"context"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Map applies fn to each record's active value and writes the result back
// to the active channel, id and every other channel left unchanged. fn may
// declare where the value slot goes by placing Hole among args; otherwise
// the value is prepended.
type Map struct {
	curried curried
	rawArgs []any
}

// NewMap builds a Map transformer from fn and its extra arguments.
func NewMap(fn func(args ...any) any, args ...any) *Map {
	return &Map{curried: newCurried(fn, args), rawArgs: args}
}

func (m *Map) ChainHash() string {
	return chain.Hash("map", m.curried.fn, hashArgs(m.rawArgs))
}

func (m *Map) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, m) }

func (m *Map) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			if !yield(r.WithValue(m.curried.call(r.Value()))) {
				return
			}
		}
	}
}

// Map deliberately does not implement chain.Serializable: an arbitrary Go
// function value cannot round-trip through a registry name and JSON
// arguments, matching the process-mode requirement (spec §5) that a
// target chain carrying a non-serializable user function fails with a
// clear error. The check runs when a process-mode ForkJoin's Transform
// starts its worker pool, before any record is streamed; building the
// ForkJoin itself does not check.
