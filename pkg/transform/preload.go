package transform

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Preload materializes the upstream into a buffer before re-yielding it:
// the whole stream when size is nil, or rolling windows of size records
// otherwise. It exists to force upstream side effects (e.g. a slow source)
// to run to completion before downstream starts consuming, without
// changing record order.
type Preload struct {
	size *int
}

// NewPreload builds a Preload transformer. A nil size buffers the entire
// stream at once.
func NewPreload(size *int) *Preload { return &Preload{size: size} }

func (p *Preload) ChainHash() string {
	if p.size == nil {
		return chain.Hash("preload", "<nil>")
	}
	return chain.Hash("preload", *p.size)
}

func (p *Preload) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, p) }

func (p *Preload) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		if p.size == nil {
			buf := collect(in)
			for _, r := range buf {
				if !yield(r) {
					return
				}
			}
			return
		}
		var chunk []record.Record
		for r := range in {
			chunk = append(chunk, r)
			if len(chunk) == *p.size {
				for _, c := range chunk {
					if !yield(c) {
						return
					}
				}
				chunk = nil
			}
		}
		for _, c := range chunk {
			if !yield(c) {
				return
			}
		}
	}
}

func collect(in iter.Seq[record.Record]) []record.Record {
	var out []record.Record
	for r := range in {
		out = append(out, r)
	}
	return out
}

func (p *Preload) FactoryName() string { return "preload" }

func (p *Preload) FactoryArgs() ([]byte, error) { return json.Marshal(p.size) }

func init() {
	chain.Register("preload", func(args json.RawMessage) (chain.PipeChain, error) {
		var size *int
		if err := json.Unmarshal(args, &size); err != nil {
			return nil, err
		}
		return NewPreload(size), nil
	})
}
