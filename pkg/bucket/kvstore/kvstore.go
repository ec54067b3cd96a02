// Package kvstore implements bucket.Backend as a single embedded Badger
// database per bucket: the idiomatic Go analog of the original
// implementation's single-file HDF5 archive backend, offering the same
// "one self-contained store, many records" shape (one Badger database
// directory per bucket) without depending on an
// HDF5 binding (none exists in this module's dependency set).
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger"

	"github.com/pipex-go/pipex/pkg/bucket"
	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// MetaVersion is the on-disk layout version this package writes and
// expects to read.
var MetaVersion = bucket.NewVersion(0, 0, 1)

var metaKey = []byte("pipex:meta")

const recordKeyPrefix = "pipex:rec:"

// Backend is one bucket's Badger-backed storage. Unlike dirstore, a
// Backend owns its database's lifetime: callers should Close it once done.
type Backend struct {
	dir string
	db  *badger.DB
}

// Open opens (creating if absent) the Badger database rooted at dir as a
// bucket backend.
func Open(dir string) (*Backend, error) {
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: opening %s: %w", dir, err)
	}
	return &Backend{dir: dir, db: db}, nil
}

// Close releases the underlying database handle.
func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) ChainHash() string {
	return chain.Hash("kvstore_backend", b.dir)
}

func (b *Backend) LoadMetadata(context.Context) (bucket.Metadata, error) {
	var metadata bucket.Metadata
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey)
		if err == badger.ErrKeyNotFound {
			metadata = bucket.InitialMetadata(MetaVersion)
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &metadata)
		})
	})
	if err != nil {
		return bucket.Metadata{}, fmt.Errorf("kvstore: loading metadata: %w", err)
	}
	return metadata, nil
}

func (b *Backend) FlushMetadata(_ context.Context, metadata bucket.Metadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("kvstore: encoding metadata: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey, data)
	})
}

func (b *Backend) LoadIDs(context.Context) ([]string, error) {
	var ids []string
	prefix := []byte(recordKeyPrefix)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kvstore: listing records: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// storedRecord is the single-key encoding of a whole record: JSON handles
// []byte channel values (base64) and record.NDArray equally well, so a
// record needs no per-channel key splitting the way the directory backend
// does.
type storedRecord struct {
	ID            string                    `json:"id"`
	Timestamp     float64                   `json:"timestamp"`
	ActiveChannel string                    `json:"active_channel"`
	Channels      map[string]storedAtom     `json:"channels"`
}

type storedAtom struct {
	Format record.Format   `json:"format"`
	Value  json.RawMessage `json:"value"`
}

func (b *Backend) LoadRecord(_ context.Context, id string) (record.Record, error) {
	var stored storedRecord
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return record.Record{}, fmt.Errorf("kvstore: loading record %s: %w", id, err)
	}

	channels := make(map[string]record.Atom, len(stored.Channels))
	for name, atom := range stored.Channels {
		value, err := decodeAtomValue(atom)
		if err != nil {
			return record.Record{}, fmt.Errorf("kvstore: decoding channel %s of record %s: %w", name, id, err)
		}
		channels[name] = record.Atom{Value: value, Format: atom.Format}
	}
	return record.FromChannels(stored.ID, stored.Timestamp, stored.ActiveChannel, channels), nil
}

func decodeAtomValue(atom storedAtom) (any, error) {
	switch atom.Format {
	case record.FormatNDArray, record.FormatImage:
		var arr record.NDArray
		if err := json.Unmarshal(atom.Value, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	case record.FormatBlob:
		var b []byte
		if err := json.Unmarshal(atom.Value, &b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		var v any
		if err := json.Unmarshal(atom.Value, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func (b *Backend) SaveRecord(_ context.Context, r record.Record) error {
	raw := r.RawChannels()
	channels := make(map[string]storedAtom, len(raw))
	for name, atom := range raw {
		data, err := json.Marshal(atom.Value)
		if err != nil {
			return fmt.Errorf("kvstore: encoding channel %s of record %s: %w", name, r.ID(), err)
		}
		channels[name] = storedAtom{Format: atom.Format, Value: data}
	}
	stored := storedRecord{
		ID:            r.ID(),
		Timestamp:     r.Timestamp(),
		ActiveChannel: r.ActiveChannel(),
		Channels:      channels,
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("kvstore: encoding record %s: %w", r.ID(), err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(r.ID()), data)
	})
}

func recordKey(id string) []byte { return []byte(recordKeyPrefix + id) }
