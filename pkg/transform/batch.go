package transform

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// BatchChannel is the channel name batched records are stored under,
// matching the original implementation's fixed "precord_batch" channel.
const BatchChannel = "precord_batch"

// Batch groups every batchSize consecutive records into one record whose
// BatchChannel value is a []record.Record slice; the final group may be
// short. Batch and Unbatch are an exact inverse pair on a finite stream.
type Batch struct {
	batchSize int
}

// NewBatch builds a Batch transformer grouping batchSize records at a
// time.
func NewBatch(batchSize int) *Batch { return &Batch{batchSize: batchSize} }

func (b *Batch) ChainHash() string { return chain.Hash("batch", b.batchSize) }

func (b *Batch) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, b) }

func (b *Batch) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		var group []record.Record
		for r := range in {
			group = append(group, r)
			if len(group) == b.batchSize {
				if !yield(record.New(group[0].ID(), BatchChannel, group)) {
					return
				}
				group = nil
			}
		}
		if len(group) > 0 {
			yield(record.New(group[0].ID(), BatchChannel, group))
		}
	}
}

func (b *Batch) FactoryName() string { return "batch" }

func (b *Batch) FactoryArgs() ([]byte, error) { return json.Marshal(b.batchSize) }

func init() {
	chain.Register("batch", func(args json.RawMessage) (chain.PipeChain, error) {
		var n int
		if err := json.Unmarshal(args, &n); err != nil {
			return nil, err
		}
		return NewBatch(n), nil
	})
}

// Unbatch reverses Batch: it reads a []record.Record from BatchChannel
// and re-yields its members individually.
type Unbatch struct{}

// NewUnbatch builds an Unbatch transformer.
func NewUnbatch() *Unbatch { return &Unbatch{} }

func (u *Unbatch) ChainHash() string { return chain.Hash("unbatch") }

func (u *Unbatch) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, u) }

func (u *Unbatch) Transform(_ context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range in {
			group, ok := r.Value().([]record.Record)
			if !ok {
				continue
			}
			for _, member := range group {
				if !yield(member) {
					return
				}
			}
		}
	}
}

func (u *Unbatch) FactoryName() string { return "unbatch" }

func (u *Unbatch) FactoryArgs() ([]byte, error) { return json.Marshal(struct{}{}) }

func init() {
	chain.Register("unbatch", func(json.RawMessage) (chain.PipeChain, error) {
		return NewUnbatch(), nil
	})
}
