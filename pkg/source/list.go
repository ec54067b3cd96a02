// Package source implements the built-in Source/Sink coercions and
// reference sources: a plain value sequence coercing into a Source, a
// slice coercing into a Source+Sink, a pretty-printing sink, and the
// repeat/concat/merge combinators.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// ListSourceSink is the Source+Sink a bare slice coerces into: reading
// yields its elements as records, writing appends. It is the simplest
// buffered boundary in the algebra — any non-terminal Sink must also be a
// Source, and this is the reference example.
type ListSourceSink struct {
	items *[]record.Record
}

// NewListSourceSink wraps dest, which this value reads from and appends
// to in place.
func NewListSourceSink(dest *[]record.Record) *ListSourceSink {
	return &ListSourceSink{items: dest}
}

// FromValues builds a ListSourceSink backed by a fresh slice, wrapping
// each value with record.FromObject the way the original implementation's
// ListSourceSink.generate_precords does for non-record items.
func FromValues(values ...any) *ListSourceSink {
	items := make([]record.Record, len(values))
	for i, v := range values {
		if r, ok := v.(record.Record); ok {
			items[i] = r
			continue
		}
		items[i] = record.FromObject(fmt.Sprintf("r%d", i), v)
	}
	return &ListSourceSink{items: &items}
}

// Values returns the records currently buffered.
func (l *ListSourceSink) Values() []record.Record { return append([]record.Record(nil), *l.items...) }

func (l *ListSourceSink) ChainHash() string { return chain.Hash("ListSourceSink", len(*l.items)) }

func (l *ListSourceSink) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, l) }

func (l *ListSourceSink) Generate(context.Context) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for _, r := range *l.items {
			if !yield(r) {
				return
			}
		}
	}
}

func (l *ListSourceSink) FetchSourceDataVersion(context.Context) chain.SourceDataVersion {
	return chain.SourceDataVersion{DataHash: chain.StringPtr(fmt.Sprintf("%d", len(*l.items)))}
}

func (l *ListSourceSink) Process(_ context.Context, upstream iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range upstream {
			*l.items = append(*l.items, r)
			if !yield(r) {
				return
			}
		}
	}
}

func (l *ListSourceSink) FetchSinkDataVersion(context.Context) chain.SinkDataVersion {
	return chain.SinkDataVersion{}
}

func (l *ListSourceSink) FactoryName() string { return "list_source_sink" }

func (l *ListSourceSink) FactoryArgs() ([]byte, error) { return json.Marshal(struct{}{}) }
