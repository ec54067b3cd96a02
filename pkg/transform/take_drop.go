package transform

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Take yields at most n records, then stops pulling from upstream.
type Take struct {
	n int
}

// NewTake builds a Take transformer limiting the stream to n records.
func NewTake(n int) *Take { return &Take{n: n} }

func (t *Take) ChainHash() string { return chain.Hash("take", t.n) }

func (t *Take) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, t) }

func (t *Take) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		if t.n <= 0 {
			return
		}
		count := 0
		for r := range in {
			if !yield(r) {
				return
			}
			count++
			if count >= t.n {
				return
			}
		}
	}
}

func (t *Take) FactoryName() string { return "take" }

func (t *Take) FactoryArgs() ([]byte, error) { return json.Marshal(t.n) }

func init() {
	chain.Register("take", func(args json.RawMessage) (chain.PipeChain, error) {
		var n int
		if err := json.Unmarshal(args, &n); err != nil {
			return nil, err
		}
		return NewTake(n), nil
	})
}

// Drop skips the first n records and yields the rest.
type Drop struct {
	n int
}

// NewDrop builds a Drop transformer skipping the first n records.
func NewDrop(n int) *Drop { return &Drop{n: n} }

func (d *Drop) ChainHash() string { return chain.Hash("drop", d.n) }

func (d *Drop) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, d) }

func (d *Drop) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		i := 0
		for r := range in {
			if i < d.n {
				i++
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

func (d *Drop) FactoryName() string { return "drop" }

func (d *Drop) FactoryArgs() ([]byte, error) { return json.Marshal(d.n) }

func init() {
	chain.Register("drop", func(args json.RawMessage) (chain.PipeChain, error) {
		var n int
		if err := json.Unmarshal(args, &n); err != nil {
			return nil, err
		}
		return NewDrop(n), nil
	})
}
