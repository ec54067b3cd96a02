package source

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// Repeat is an infinite Source that yields the same value forever. Callers
// must compose it with a Take (or some other bounding transformer)
// downstream, since the engine does not itself impose a limit.
type Repeat struct {
	value any
}

// NewRepeat builds a Repeat source over value.
func NewRepeat(value any) *Repeat { return &Repeat{value: value} }

func (r *Repeat) ChainHash() string { return chain.Hash("repeat", r.value) }

func (r *Repeat) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, r) }

func (r *Repeat) Generate(ctx context.Context) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !yield(record.FromObject(fmt.Sprintf("repeat-%d", i), r.value)) {
				return
			}
		}
	}
}

func (r *Repeat) FetchSourceDataVersion(context.Context) chain.SourceDataVersion {
	return chain.SourceDataVersion{}
}

func (r *Repeat) FactoryName() string { return "repeat" }

func (r *Repeat) FactoryArgs() ([]byte, error) { return json.Marshal(r.value) }

func init() {
	chain.Register("repeat", func(args json.RawMessage) (chain.PipeChain, error) {
		var v any
		if err := json.Unmarshal(args, &v); err != nil {
			return nil, err
		}
		return NewRepeat(v), nil
	})
}

// Concat chains several sources end to end: every record of the first,
// then every record of the second, and so on.
type Concat struct {
	sources []chain.Source
}

// NewConcat builds a Concat source over sources, in order.
func NewConcat(sources ...chain.Source) *Concat { return &Concat{sources: sources} }

func (c *Concat) ChainHash() string {
	parts := make([]any, len(c.sources))
	for i, s := range c.sources {
		parts[i] = s
	}
	return chain.Hash("concat", parts...)
}

func (c *Concat) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, c) }

func (c *Concat) Generate(ctx context.Context) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for _, s := range c.sources {
			for r := range s.Generate(ctx) {
				if !yield(r) {
					return
				}
			}
		}
	}
}

func (c *Concat) FetchSourceDataVersion(ctx context.Context) chain.SourceDataVersion {
	return chain.SourceDataVersion{}
}

// Merge zips several sources together by position, merging each position's
// channels into one record (later sources' channels win on conflict); it
// stops at the shortest source, like the original implementation's
// zip_longest-free merge variant used inside a closed chain.
type Merge struct {
	sources []chain.Source
}

// NewMerge builds a Merge source over sources.
func NewMerge(sources ...chain.Source) *Merge { return &Merge{sources: sources} }

func (m *Merge) ChainHash() string {
	parts := make([]any, len(m.sources))
	for i, s := range m.sources {
		parts[i] = s
	}
	return chain.Hash("merge", parts...)
}

func (m *Merge) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, m) }

func (m *Merge) Generate(ctx context.Context) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		if len(m.sources) == 0 {
			return
		}
		pulls := make([]func() (record.Record, bool), len(m.sources))
		for i, s := range m.sources {
			next, stop := iter.Pull(s.Generate(ctx))
			defer stop()
			pulls[i] = func() (record.Record, bool) { return next() }
		}
		for {
			result, ok := pulls[0]()
			if !ok {
				return
			}
			values := make(map[string]any, len(result.Channels()))
			for _, name := range result.Channels() {
				a, _ := result.AtomAt(name)
				values[name] = a.Value
			}
			for i := 1; i < len(pulls); i++ {
				r, ok := pulls[i]()
				if !ok {
					return
				}
				for _, name := range r.Channels() {
					a, _ := r.AtomAt(name)
					values[name] = a.Value
				}
			}
			merged := result.Merge(values)
			if !yield(merged) {
				return
			}
		}
	}
}

func (m *Merge) FetchSourceDataVersion(context.Context) chain.SourceDataVersion {
	return chain.SourceDataVersion{}
}
