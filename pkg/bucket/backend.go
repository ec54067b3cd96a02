package bucket

import (
	"context"

	"github.com/pipex-go/pipex/pkg/record"
)

// Backend is the storage-specific half of a Bucket: loading/flushing
// metadata, enumerating ids, and loading/saving individual records. Scope is
// an ordered path of names identifying which bucket within a storage root a
// Backend instance addresses (the Go analog of the original implementation's
// storage.bucket(*scope)).
type Backend interface {
	// ChainHash contributes the backend's own identity (storage root, scope,
	// physical format) to the owning Bucket's ChainHash.
	ChainHash() string

	LoadMetadata(ctx context.Context) (Metadata, error)
	FlushMetadata(ctx context.Context, metadata Metadata) error

	LoadIDs(ctx context.Context) ([]string, error)
	LoadRecord(ctx context.Context, id string) (record.Record, error)
	SaveRecord(ctx context.Context, r record.Record) error
}
