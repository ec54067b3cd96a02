package source

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// SeqSource coerces an arbitrary finite Go sequence of values into a
// single-use Source, wrapping each non-Record value with
// record.FromObject, the Go analog of the original implementation's
// IterSource coercion for "any iterable" that is not already a list.
type SeqSource struct {
	seq iter.Seq[any]
}

// FromSeq wraps seq as a Source.
func FromSeq(seq iter.Seq[any]) *SeqSource { return &SeqSource{seq: seq} }

func (s *SeqSource) ChainHash() string { return chain.Hash("SeqSource") }

func (s *SeqSource) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, s) }

func (s *SeqSource) Generate(context.Context) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		i := 0
		for v := range s.seq {
			var r record.Record
			if rr, ok := v.(record.Record); ok {
				r = rr
			} else {
				r = record.FromObject(fmt.Sprintf("r%d", i), v)
			}
			i++
			if !yield(r) {
				return
			}
		}
	}
}

func (s *SeqSource) FetchSourceDataVersion(context.Context) chain.SourceDataVersion {
	return chain.SourceDataVersion{}
}

// Done is the sink a caller uses purely to drive a pipeline to completion
// without caring about its output, matching the original implementation's
// "done" sink.
type Done struct{}

// NewDone builds a Done sink.
func NewDone() *Done { return &Done{} }

func (d *Done) ChainHash() string { return chain.Hash("done") }

func (d *Done) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, d) }

func (d *Done) Process(_ context.Context, upstream iter.Seq[record.Record]) iter.Seq[record.Record] {
	return upstream
}

func (d *Done) FetchSinkDataVersion(context.Context) chain.SinkDataVersion {
	return chain.SinkDataVersion{}
}

func (d *Done) FactoryName() string { return "done" }

func (d *Done) FactoryArgs() ([]byte, error) { return json.Marshal(struct{}{}) }

func init() {
	chain.Register("done", func(json.RawMessage) (chain.PipeChain, error) { return NewDone(), nil })
}
