package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Slice reproduces Python-style islice(a, b, step) semantics over the
// record stream: start (default 0), an optional exclusive stop, and a
// step (default 1, must be positive since the stream can't be rewound).
type Slice struct {
	Start int
	Stop  *int
	Step  int
}

// NewSlice builds a Slice transformer. A nil stop means "to the end."
func NewSlice(start int, stop *int, step int) *Slice {
	if step <= 0 {
		step = 1
	}
	return &Slice{Start: start, Stop: stop, Step: step}
}

func (s *Slice) ChainHash() string {
	stop := "<nil>"
	if s.Stop != nil {
		stop = fmt.Sprintf("%d", *s.Stop)
	}
	return chain.Hash("slice", s.Start, stop, s.Step)
}

func (s *Slice) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, s) }

func (s *Slice) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		i := 0
		for r := range in {
			if i < s.Start {
				i++
				continue
			}
			if s.Stop != nil && i >= *s.Stop {
				return
			}
			if (i-s.Start)%s.Step == 0 {
				if !yield(r) {
					return
				}
			}
			i++
		}
	}
}

type sliceDef struct {
	Start int  `json:"start"`
	Stop  *int `json:"stop,omitempty"`
	Step  int  `json:"step"`
}

func (s *Slice) FactoryName() string { return "slice" }

func (s *Slice) FactoryArgs() ([]byte, error) {
	return json.Marshal(sliceDef{Start: s.Start, Stop: s.Stop, Step: s.Step})
}

func init() {
	chain.Register("slice", func(args json.RawMessage) (chain.PipeChain, error) {
		var d sliceDef
		if err := json.Unmarshal(args, &d); err != nil {
			return nil, err
		}
		return NewSlice(d.Start, d.Stop, d.Step), nil
	})
}
