// Package chain implements the role-based chain algebra: Source,
// Transformer, and Sink primitives, the Redirect/Pipe composition
// operators, and the normal-form types (TransformerSequence,
// TransformedSource, TransformedSink, Pipeline) they reduce to.
package chain

import (
	"context"
	"iter"

	"github.com/pipex-go/pipex/pkg/record"
)

// Marker values used by Flatten/parseChain to separate primitives in the
// token stream, the Go expression of the original implementation's
// flatten-then-reparse normalization strategy.
const (
	MarkerRedirect = "↦"
	MarkerPipe     = "∥"
)

// Element is either a PipeChain node or one of the Marker constants above.
type Element = any

// PipeChain is the capability every stage in the algebra shares.
type PipeChain interface {
	// ChainHash returns a stable content hash of this node's structure and
	// constructor arguments; two chains with equal ChainHash denote the
	// same transformation up to those arguments.
	ChainHash() string

	// Flatten appends this node's token-stream representation to tokens,
	// interleaving Marker values for composite nodes.
	Flatten(tokens *[]Element)
}

// Source produces records, finite or infinite. A Source is single-use:
// the engine iterates it exactly once per pipeline execution.
type Source interface {
	PipeChain
	Generate(ctx context.Context) iter.Seq[record.Record]
	FetchSourceDataVersion(ctx context.Context) SourceDataVersion
}

// Transformer maps a stream of records to another stream, lazily. It may
// reorder, filter, expand one record into many, or collapse many into
// one.
type Transformer interface {
	PipeChain
	Transform(ctx context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record]
}

// Sink pulls from upstream, consumes each record, and re-yields it so a
// later observer can still inspect the stream.
type Sink interface {
	PipeChain
	Process(ctx context.Context, upstream iter.Seq[record.Record]) iter.Seq[record.Record]
	FetchSinkDataVersion(ctx context.Context) SinkDataVersion
}

// SourceDataVersion identifies the data currently producible by a Source.
// A nil DataHash means "unknown, assume changed."
type SourceDataVersion struct {
	DataHash *string
}

// SinkDataVersion identifies what is currently persisted at a Sink and
// which upstream (data + transformer chain) produced it.
type SinkDataVersion struct {
	SourceDataHash  *string
	SourceChainHash *string
}

// Serializable is implemented by stages that can be reconstructed from a
// registry name and JSON-encoded constructor arguments. Fork-join's
// process-mode workers require every node of a target chain to implement
// this; see pkg/forkjoin.
type Serializable interface {
	FactoryName() string
	FactoryArgs() ([]byte, error)
}

// StringPtr is a small convenience for building a SourceDataVersion or
// SinkDataVersion literal inline.
func StringPtr(s string) *string { return &s }
