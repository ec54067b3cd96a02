// Package dirstore implements bucket.Backend over a plain directory tree:
// one pbucket.json metadata file, per-record JSON descriptors under
// pbkt_data/, and one sibling directory per non-scalar channel holding that
// channel's payload files.
package dirstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pipex-go/pipex/pkg/bucket"
	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// MetaVersion is the on-disk layout version this package writes and
// expects to read.
var MetaVersion = bucket.NewVersion(0, 0, 1)

const (
	metaFileName    = "pbucket.json"
	metaTmpFileName = "pbucket.json.tmp"
	dataSubDir      = "data"
)

// Store is a dirstore.Backend's root: a base directory under which every
// bucket's scope addresses a subdirectory.
type Store struct {
	baseDir string
}

// NewStore builds a Store rooted at baseDir.
func NewStore(baseDir string) *Store { return &Store{baseDir: baseDir} }

// Bucket returns the backend for the bucket at scope (a path of directory
// names under baseDir). It touches nothing on disk; the directory and
// initial metadata are created on first use by LoadMetadata, LoadIDs or
// SaveRecord.
func (s *Store) Bucket(scope ...string) *Backend {
	return &Backend{
		dir:         filepath.Join(append([]string{s.baseDir}, scope...)...),
		scope:       append([]string(nil), scope...),
		subDirCache: make(map[string]string),
	}
}

// Backend is one bucket's directory-backed storage.
type Backend struct {
	dir   string
	scope []string

	mu          sync.Mutex
	subDirCache map[string]string
}

func (b *Backend) ChainHash() string {
	return chain.Hash("dirstore_backend", b.dir)
}

func (b *Backend) metaPath() string    { return filepath.Join(b.dir, metaFileName) }
func (b *Backend) metaTmpPath() string { return filepath.Join(b.dir, metaTmpFileName) }
func (b *Backend) dataDir() string     { return b.subDir(dataSubDir) }

func (b *Backend) subDir(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.subDirCache[name]; ok {
		return cached
	}
	dir := filepath.Join(b.dir, "pbkt_"+name)
	b.subDirCache[name] = dir
	return dir
}

func (b *Backend) ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

func (b *Backend) ensureBucketDir(ctx context.Context) error {
	if err := b.ensureDir(b.dir); err != nil {
		return err
	}
	if err := b.ensureDir(b.dataDir()); err != nil {
		return err
	}
	if _, err := os.Stat(b.metaPath()); os.IsNotExist(err) {
		return b.FlushMetadata(ctx, bucket.InitialMetadata(MetaVersion))
	} else if err != nil {
		return err
	}
	return nil
}

func (b *Backend) LoadMetadata(ctx context.Context) (bucket.Metadata, error) {
	if err := b.ensureBucketDir(ctx); err != nil {
		return bucket.Metadata{}, err
	}
	data, err := os.ReadFile(b.metaPath())
	if err != nil {
		return bucket.Metadata{}, fmt.Errorf("dirstore: reading metadata: %w", err)
	}
	var metadata bucket.Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return bucket.Metadata{}, fmt.Errorf("dirstore: decoding metadata: %w", err)
	}
	return metadata, nil
}

// FlushMetadata writes metadata via write-tmp-then-rename, refusing if a
// tmp file is already present: that means another writer is mid-flush, the
// same concurrent-writer guard the original implementation's PBucket uses.
func (b *Backend) FlushMetadata(_ context.Context, metadata bucket.Metadata) error {
	if err := b.ensureDir(b.dir); err != nil {
		return err
	}
	tmpPath := b.metaTmpPath()
	if _, err := os.Stat(tmpPath); err == nil {
		return fmt.Errorf("dirstore: %s exists; another writer may be modifying this bucket", tmpPath)
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("dirstore: encoding metadata: %w", err)
	}
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("dirstore: writing metadata tmp file: %w", err)
	}
	return os.Rename(tmpPath, b.metaPath())
}

func (b *Backend) LoadIDs(ctx context.Context) ([]string, error) {
	if err := b.ensureBucketDir(ctx); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.dataDir())
	if err != nil {
		return nil, fmt.Errorf("dirstore: listing records: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// recordDescriptor is the per-record pbkt_data/<id>.json shape, mirroring
// the original PBucket's save_precord/load_precord layout.
type recordDescriptor struct {
	ID             string                    `json:"id"`
	ActiveChannel  string                    `json:"active_channel"`
	ChannelNames   []string                  `json:"channel_names"`
	ChannelFormats []record.Format           `json:"channel_formats"`
	Timestamp      float64                   `json:"timestamp"`
	Data           map[string]any            `json:"data"`
}

func extensionFor(format record.Format) string {
	switch format {
	case record.FormatImage:
		return ".png"
	case record.FormatNDArray:
		return ".npz"
	case record.FormatText:
		return ".txt"
	default:
		return ".dat"
	}
}

func (b *Backend) LoadRecord(_ context.Context, id string) (record.Record, error) {
	path := filepath.Join(b.dataDir(), id+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return record.Record{}, fmt.Errorf("dirstore: reading record %s: %w", id, err)
	}
	var desc recordDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return record.Record{}, fmt.Errorf("dirstore: decoding record %s: %w", id, err)
	}

	channels := make(map[string]record.Atom, len(desc.ChannelNames))
	for i, name := range desc.ChannelNames {
		format := desc.ChannelFormats[i]
		if format == record.FormatData {
			channels[name] = record.Atom{Value: desc.Data[name], Format: format}
			continue
		}
		payloadPath := filepath.Join(b.subDir(name), id+extensionFor(format))
		value, err := loadPayload(format, payloadPath)
		if err != nil {
			return record.Record{}, fmt.Errorf("dirstore: loading channel %s of record %s: %w", name, id, err)
		}
		channels[name] = record.Atom{Value: value, Format: format}
	}

	return record.FromChannels(desc.ID, desc.Timestamp, desc.ActiveChannel, channels), nil
}

func loadPayload(format record.Format, path string) (any, error) {
	switch format {
	case record.FormatText:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case record.FormatBlob:
		return os.ReadFile(path)
	case record.FormatImage, record.FormatNDArray:
		// No image/tensor codec exists in this module's dependency set;
		// ndarray and image payloads round-trip through
		// a JSON encoding of record.NDArray under the original's file
		// extension, rather than real PNG/NPZ bytes.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var arr record.NDArray
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return os.ReadFile(path)
	}
}

func (b *Backend) SaveRecord(ctx context.Context, r record.Record) error {
	if err := b.ensureBucketDir(ctx); err != nil {
		return err
	}
	channelNames := r.Channels()
	desc := recordDescriptor{
		ID:            r.ID(),
		ActiveChannel: r.ActiveChannel(),
		Timestamp:     r.Timestamp(),
		Data:          make(map[string]any),
	}
	raw := r.RawChannels()
	for _, name := range channelNames {
		atom := raw[name]
		desc.ChannelNames = append(desc.ChannelNames, name)
		desc.ChannelFormats = append(desc.ChannelFormats, atom.Format)
		if atom.Format == record.FormatData {
			desc.Data[name] = atom.Value
			continue
		}
		if err := b.ensureDir(b.subDir(name)); err != nil {
			return err
		}
		path := filepath.Join(b.subDir(name), r.ID()+extensionFor(atom.Format))
		if err := savePayload(atom, path); err != nil {
			return fmt.Errorf("dirstore: saving channel %s of record %s: %w", name, r.ID(), err)
		}
	}

	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("dirstore: encoding record %s: %w", r.ID(), err)
	}
	path := filepath.Join(b.dataDir(), r.ID()+".json")
	return os.WriteFile(path, data, 0o644)
}

func savePayload(atom record.Atom, path string) error {
	switch atom.Format {
	case record.FormatText:
		s, _ := atom.Value.(string)
		return os.WriteFile(path, []byte(s), 0o644)
	case record.FormatBlob:
		b, _ := atom.Value.([]byte)
		return os.WriteFile(path, b, 0o644)
	default:
		data, err := json.Marshal(atom.Value)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
}
