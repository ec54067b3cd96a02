package bucket

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/pipex-go/pipex/internal/logging"
	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// WriteMode selects how a Bucket persists records as it rewrites: stream
// them through one at a time, accumulate every record before yielding any
// (full batch), or yield in fixed-size groups as they fill (mini batch).
type WriteMode int

const (
	StreamWrite WriteMode = iota
	FullBatchWrite
	MiniBatchWrite
)

// Options configures a Bucket's write behavior.
type Options struct {
	WriteMode WriteMode
	// BatchSize is only consulted in MiniBatchWrite.
	BatchSize int
	// FlushInterval bounds how often metadata is flushed mid-rewrite;
	// metadata is always flushed once at the end regardless.
	FlushInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.FlushInterval <= 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.WriteMode == MiniBatchWrite && o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	return o
}

// Bucket is a Source+Sink boundary backed by a Backend: it persists
// whatever it's handed and can replay its current contents without
// re-running the upstream chain, the "buffered boundary" building block
// bucket-to-bucket pipelines are assembled from.
type Bucket struct {
	backend    Backend
	opts       Options
	lastFlush  time.Time
	haveFlush  bool
}

// New builds a Bucket over backend.
func New(backend Backend, opts Options) *Bucket {
	return &Bucket{backend: backend, opts: opts.withDefaults()}
}

func (b *Bucket) ChainHash() string {
	return chain.Hash("bucket", b.backend.ChainHash())
}

func (b *Bucket) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, chain.PipeChain(b)) }

// Generate replays the bucket's current contents in whatever id order
// Backend.LoadIDs returns them.
func (b *Bucket) Generate(ctx context.Context) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		ids, err := b.backend.LoadIDs(ctx)
		if err != nil {
			panic(&chain.IterationError{Err: fmt.Errorf("bucket: loading ids: %w", err)})
		}
		for _, id := range ids {
			r, err := b.backend.LoadRecord(ctx, id)
			if err != nil {
				panic(&chain.IterationError{Err: fmt.Errorf("bucket: loading record %s: %w", id, err)})
			}
			if !yield(r) {
				return
			}
		}
	}
}

func (b *Bucket) FetchSourceDataVersion(ctx context.Context) chain.SourceDataVersion {
	metadata, err := b.backend.LoadMetadata(ctx)
	if err != nil {
		return chain.SourceDataVersion{}
	}
	return metadata.FetchSourceDataVersion()
}

func (b *Bucket) FetchSinkDataVersion(ctx context.Context) chain.SinkDataVersion {
	metadata, err := b.backend.LoadMetadata(ctx)
	if err != nil {
		return chain.SinkDataVersion{}
	}
	return metadata.FetchSinkDataVersion()
}

// Process persists every record pulled from upstream, re-yielding each one,
// and updates metadata once rewriting completes (or upstream fails). This
// satisfies chain.Sink directly: chain.Pipeline has no rewrite-skip logic
// of its own (only a bucket's own Pipe does), so a bucket composed through
// Redirect/Pipeline.Execute always writes whatever it is handed, same as
// every other Sink. Callers that want a bucket's rewrite-skip
// short-circuit (serving existing contents without ever touching
// upstream) must call Pipe directly instead of composing through Redirect.
func (b *Bucket) Process(ctx context.Context, upstream iter.Seq[record.Record]) iter.Seq[record.Record] {
	return b.processWithChainHash(ctx, upstream, nil, nil)
}

// Pipe is the bucket-owned entry point mirroring the original
// implementation's Bucket.process(tr_source): it makes its own
// rewriting-required decision using ts's source version and the
// transformer chain's hash, and either serves the bucket's existing
// contents (skip) or runs ts and writes its output (rewrite). This is the
// only place in the module that ever skips regenerating a source; use it,
// not a generic chain.Pipeline, whenever a bucket's caching behavior
// should take effect.
func (b *Bucket) Pipe(ctx context.Context, ts *chain.TransformedSource) iter.Seq[record.Record] {
	sinkVersion := b.FetchSinkDataVersion(ctx)
	sourceVersion := ts.FetchSourceDataVersion(ctx)
	chainHash := ts.Transformer().ChainHash()

	required := sinkVersion.SourceDataHash == nil ||
		sinkVersion.SourceChainHash == nil ||
		sourceVersion.DataHash == nil ||
		*sourceVersion.DataHash != *sinkVersion.SourceDataHash ||
		*sinkVersion.SourceChainHash != chainHash

	if !required {
		logging.FromContext(ctx).Info("upstream not modified, skipping rewrite", "bucket", b.backend.ChainHash())
		return b.Generate(ctx)
	}

	logging.FromContext(ctx).Info("rewriting bucket", "bucket", b.backend.ChainHash())
	latestSourceDataHash := func() *string {
		return ts.Source().FetchSourceDataVersion(ctx).DataHash
	}
	return b.processWithChainHash(ctx, ts.Generate(ctx), &chainHash, latestSourceDataHash)
}

// processWithChainHash is the write path shared by Process and Pipe.
// sourceChainHash and latestSourceDataHash are nil when called generically
// through Process: the metadata's source_chain_hash/source_data_hash
// fields are then left at their previous values, since there's no
// TransformedSource in scope to derive fresh ones from.
func (b *Bucket) processWithChainHash(ctx context.Context, upstream iter.Seq[record.Record], sourceChainHash *string, latestSourceDataHash func() *string) iter.Seq[record.Record] {
	switch b.opts.WriteMode {
	case FullBatchWrite:
		return b.processFullBatch(ctx, upstream, sourceChainHash, latestSourceDataHash)
	case MiniBatchWrite:
		return b.processMiniBatch(ctx, upstream, sourceChainHash, latestSourceDataHash)
	default:
		return b.processStream(ctx, upstream, sourceChainHash, latestSourceDataHash)
	}
}

func (b *Bucket) processStream(ctx context.Context, upstream iter.Seq[record.Record], sourceChainHash *string, latestSourceDataHash func() *string) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		metadata, err := b.beginRewrite(ctx)
		if err != nil {
			panic(&chain.IterationError{Err: err})
		}
		var rewriteErr error
		for r := range upstream {
			if err := b.saveWithFlush(ctx, r, &metadata); err != nil {
				rewriteErr = err
				break
			}
			if !yield(r) {
				break
			}
		}
		b.finishRewrite(ctx, &metadata, sourceChainHash, latestSourceDataHash, rewriteErr)
		if rewriteErr != nil {
			panic(&chain.IterationError{Err: rewriteErr})
		}
	}
}

func (b *Bucket) processFullBatch(ctx context.Context, upstream iter.Seq[record.Record], sourceChainHash *string, latestSourceDataHash func() *string) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		metadata, err := b.beginRewrite(ctx)
		if err != nil {
			panic(&chain.IterationError{Err: err})
		}
		var written []record.Record
		var rewriteErr error
		for r := range upstream {
			if err := b.saveWithFlush(ctx, r, &metadata); err != nil {
				rewriteErr = err
				break
			}
			written = append(written, r)
		}
		b.finishRewrite(ctx, &metadata, sourceChainHash, latestSourceDataHash, rewriteErr)
		if rewriteErr != nil {
			panic(&chain.IterationError{Err: rewriteErr})
		}
		for _, r := range written {
			if !yield(r) {
				return
			}
		}
	}
}

func (b *Bucket) processMiniBatch(ctx context.Context, upstream iter.Seq[record.Record], sourceChainHash *string, latestSourceDataHash func() *string) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		metadata, err := b.beginRewrite(ctx)
		if err != nil {
			panic(&chain.IterationError{Err: err})
		}
		var batch []record.Record
		var rewriteErr error

		flush := func() bool {
			for _, r := range batch {
				if !yield(r) {
					return false
				}
			}
			batch = batch[:0]
			return true
		}

		for r := range upstream {
			if err := b.saveWithFlush(ctx, r, &metadata); err != nil {
				rewriteErr = err
				break
			}
			batch = append(batch, r)
			if len(batch) >= b.opts.BatchSize {
				if !flush() {
					break
				}
			}
		}
		if rewriteErr == nil {
			flush()
		}
		b.finishRewrite(ctx, &metadata, sourceChainHash, latestSourceDataHash, rewriteErr)
		if rewriteErr != nil {
			panic(&chain.IterationError{Err: rewriteErr})
		}
	}
}

func (b *Bucket) beginRewrite(ctx context.Context) (Metadata, error) {
	metadata, err := b.backend.LoadMetadata(ctx)
	if err != nil {
		return Metadata{}, fmt.Errorf("bucket: loading metadata: %w", err)
	}
	b.haveFlush = false
	return metadata, nil
}

func (b *Bucket) saveWithFlush(ctx context.Context, r record.Record, metadata *Metadata) error {
	if err := b.backend.SaveRecord(ctx, r); err != nil {
		return fmt.Errorf("bucket: saving record %s: %w", r.ID(), err)
	}
	if r.Timestamp() > metadata.LatestRecordTimestamp {
		metadata.LatestRecordTimestamp = r.Timestamp()
	}
	now := time.Now()
	if !b.haveFlush || now.Sub(b.lastFlush) > b.opts.FlushInterval {
		if err := b.backend.FlushMetadata(ctx, *metadata); err != nil {
			return fmt.Errorf("bucket: flushing metadata: %w", err)
		}
		b.lastFlush = now
		b.haveFlush = true
	}
	return nil
}

// finishRewrite always runs, success or failure, mirroring the original's
// try/finally: the freshly observed source data hash and chain hash are
// recorded even when the write loop stopped early, so a retried run can
// still tell "partially written under this source version" from "written
// under a different one."
func (b *Bucket) finishRewrite(ctx context.Context, metadata *Metadata, sourceChainHash *string, latestSourceDataHash func() *string, rewriteErr error) {
	if sourceChainHash != nil {
		metadata.SourceChainHash = sourceChainHash
	}
	if latestSourceDataHash != nil {
		metadata.SourceDataHash = latestSourceDataHash()
	}
	dataHash := uuid.NewString()
	metadata.DataHash = &dataHash
	if err := b.backend.FlushMetadata(ctx, *metadata); err != nil && rewriteErr == nil {
		logging.FromContext(ctx).Error("failed to flush bucket metadata", "error", err)
	}
}
