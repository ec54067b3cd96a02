package config

import (
	"github.com/pipex-go/pipex/pkg/bucket"
	"github.com/pipex-go/pipex/pkg/forkjoin"
)

// ForkJoinOptions converts this configuration into forkjoin.Options.
func (c ForkJoinConfig) ForkJoinOptions() forkjoin.Options {
	return forkjoin.Options{
		NumWorkers:   c.NumWorkers,
		ChunkSize:    c.ChunkSize,
		QueueSize:    c.QueueSize,
		PollInterval: c.PollInterval,
		IgnoreError:  c.IgnoreError,
		StartMethod:  c.StartMethod,
	}
}

// BucketOptions converts this configuration into bucket.Options.
func (c BucketConfig) BucketOptions() bucket.Options {
	return bucket.Options{
		WriteMode:     c.writeMode(),
		BatchSize:     c.BatchSize,
		FlushInterval: c.FlushInterval,
	}
}

func (c BucketConfig) writeMode() bucket.WriteMode {
	switch c.WriteMode {
	case "full_batch":
		return bucket.FullBatchWrite
	case "mini_batch":
		return bucket.MiniBatchWrite
	default:
		return bucket.StreamWrite
	}
}
