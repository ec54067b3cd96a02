package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    *Config
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			want: &Config{
				ForkJoin: ForkJoinConfig{
					NumWorkers:   DefaultNumWorkers,
					ChunkSize:    DefaultChunkSize,
					QueueSize:    DefaultQueueSize,
					PollInterval: DefaultPollInterval,
					IgnoreError:  DefaultIgnoreError,
					StartMethod:  DefaultStartMethod,
				},
				Bucket: BucketConfig{
					WriteMode:     DefaultBucketWriteMode,
					BatchSize:     DefaultBucketBatchSize,
					FlushInterval: DefaultBucketFlushInterval,
					BaseDir:       DefaultBucketBaseDir,
				},
				Logging: LoggingConfig{},
			},
		},
		{
			name: "custom",
			envVars: map[string]string{
				"PIPEX_FORKJOIN_NUM_WORKERS":   "4",
				"PIPEX_FORKJOIN_CHUNK_SIZE":    "16",
				"PIPEX_FORKJOIN_QUEUE_SIZE":    "5",
				"PIPEX_FORKJOIN_POLL_INTERVAL": "500ms",
				"PIPEX_FORKJOIN_IGNORE_ERROR":  "true",
				"PIPEX_FORKJOIN_START_METHOD":  "spawn",
				"PIPEX_BUCKET_WRITE_MODE":      "mini_batch",
				"PIPEX_BUCKET_BATCH_SIZE":      "32",
				"PIPEX_BUCKET_FLUSH_INTERVAL":  "1s",
				"PIPEX_BUCKET_BASE_DIR":        "/var/lib/pipex",
				"PIPEX_LOGGING_FILE_PATH":      "/var/log/pipex.log",
				"PIPEX_LOGGING_VERBOSE":        "true",
			},
			want: &Config{
				ForkJoin: ForkJoinConfig{
					NumWorkers:   4,
					ChunkSize:    16,
					QueueSize:    5,
					PollInterval: 500 * time.Millisecond,
					IgnoreError:  true,
					StartMethod:  "spawn",
				},
				Bucket: BucketConfig{
					WriteMode:     "mini_batch",
					BatchSize:     32,
					FlushInterval: 1 * time.Second,
					BaseDir:       "/var/lib/pipex",
				},
				Logging: LoggingConfig{
					FilePath: "/var/log/pipex.log",
					Verbose:  true,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			got, err := LoadConfig()
			assert.NoError(t, err)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestForkJoinOptionsRoundTrip(t *testing.T) {
	cfg := ForkJoinConfig{
		NumWorkers:   3,
		ChunkSize:    8,
		QueueSize:    10,
		PollInterval: time.Second,
		IgnoreError:  true,
		StartMethod:  "spawn",
	}
	opts := cfg.ForkJoinOptions()
	assert.Equal(t, 3, opts.NumWorkers)
	assert.Equal(t, 8, opts.ChunkSize)
	assert.Equal(t, 10, opts.QueueSize)
	assert.Equal(t, time.Second, opts.PollInterval)
	assert.True(t, opts.IgnoreError)
	assert.Equal(t, "spawn", opts.StartMethod)
}

func TestBucketOptionsWriteModeMapping(t *testing.T) {
	tests := []struct {
		writeMode string
		want      int
	}{
		{"stream", 0},
		{"full_batch", 1},
		{"mini_batch", 2},
		{"garbage", 0},
	}
	for _, tt := range tests {
		cfg := BucketConfig{WriteMode: tt.writeMode}
		assert.Equal(t, tt.want, int(cfg.BucketOptions().WriteMode))
	}
}
