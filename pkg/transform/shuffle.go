package transform

import (
	"context"
	"encoding/json"
	"iter"
	"math/rand"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Shuffle randomly permutes the stream: the whole stream in memory when
// window is nil, or consecutive windows of that size otherwise. No pack
// library wraps math/rand for a non-cryptographic permutation like this.
type Shuffle struct {
	window *int
	rng    *rand.Rand
}

// NewShuffle builds a Shuffle transformer over an optional window size.
func NewShuffle(window *int) *Shuffle {
	return &Shuffle{window: window, rng: rand.New(rand.NewSource(rand.Int63()))}
}

func (s *Shuffle) ChainHash() string {
	if s.window == nil {
		return chain.Hash("shuffle", "<nil>")
	}
	return chain.Hash("shuffle", *s.window)
}

func (s *Shuffle) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, s) }

func (s *Shuffle) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		if s.window == nil {
			window := collect(in)
			s.shuffleSlice(window)
			for _, r := range window {
				if !yield(r) {
					return
				}
			}
			return
		}
		var chunk []record.Record
		for r := range in {
			chunk = append(chunk, r)
			if len(chunk) == *s.window {
				s.shuffleSlice(chunk)
				for _, c := range chunk {
					if !yield(c) {
						return
					}
				}
				chunk = nil
			}
		}
		if len(chunk) > 0 {
			s.shuffleSlice(chunk)
			for _, c := range chunk {
				if !yield(c) {
					return
				}
			}
		}
	}
}

func (s *Shuffle) shuffleSlice(window []record.Record) {
	s.rng.Shuffle(len(window), func(i, j int) { window[i], window[j] = window[j], window[i] })
}

func (s *Shuffle) FactoryName() string { return "shuffle" }

func (s *Shuffle) FactoryArgs() ([]byte, error) { return json.Marshal(s.window) }

func init() {
	chain.Register("shuffle", func(args json.RawMessage) (chain.PipeChain, error) {
		var window *int
		if err := json.Unmarshal(args, &window); err != nil {
			return nil, err
		}
		return NewShuffle(window), nil
	})
}
