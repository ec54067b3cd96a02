package bucket

import (
	"encoding/json"

	"github.com/pipex-go/pipex/pkg/chain"
)

// Metadata is a bucket's persisted bookkeeping record: the version it was
// last written under, the content hash of its own data, and the hash of the
// upstream source data and transformer chain that produced it. A bucket's
// rewrite-skip decision (see Bucket.Pipe) is entirely a function of this
// struct plus the upstream's current SourceDataVersion/ChainHash.
type Metadata struct {
	MetaVersion           Version
	DataHash              *string
	SourceChainHash       *string
	SourceDataHash        *string
	LatestRecordTimestamp float64
}

// InitialMetadata is what a freshly created bucket starts with: every hash
// nil, which FetchSinkDataVersion reports as "always needs writing."
func InitialMetadata(metaVersion Version) Metadata {
	return Metadata{MetaVersion: metaVersion}
}

func (m Metadata) FetchSourceDataVersion() chain.SourceDataVersion {
	return chain.SourceDataVersion{DataHash: m.DataHash}
}

func (m Metadata) FetchSinkDataVersion() chain.SinkDataVersion {
	return chain.SinkDataVersion{
		SourceDataHash:  m.SourceDataHash,
		SourceChainHash: m.SourceChainHash,
	}
}

// metadataJSON is Metadata's on-the-wire shape; kept separate so Version's
// dotted-string rendering doesn't leak Metadata's internal field layout.
type metadataJSON struct {
	MetaVersion           string  `json:"meta_version"`
	DataHash              *string `json:"data_hash"`
	SourceChainHash       *string `json:"source_chain_hash"`
	SourceDataHash        *string `json:"source_data_hash"`
	LatestRecordTimestamp float64 `json:"latest_record_timestamp"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(metadataJSON{
		MetaVersion:           m.MetaVersion.String(),
		DataHash:              m.DataHash,
		SourceChainHash:       m.SourceChainHash,
		SourceDataHash:        m.SourceDataHash,
		LatestRecordTimestamp: m.LatestRecordTimestamp,
	})
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw metadataJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	version, err := ParseVersion(raw.MetaVersion)
	if err != nil {
		return err
	}
	m.MetaVersion = version
	m.DataHash = raw.DataHash
	m.SourceChainHash = raw.SourceChainHash
	m.SourceDataHash = raw.SourceDataHash
	m.LatestRecordTimestamp = raw.LatestRecordTimestamp
	return nil
}
