// Package config loads pipex's run configuration: fork-join worker
// sizing, queue capacity, and bucket storage defaults. It follows the
// house pattern for config in this codebase: Viper bound to environment
// variables under a single prefix, with an optional YAML config file,
// decoded into a typed struct via mapstructure.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// DefaultEnvPrefix namespaces every environment variable this package
	// binds, e.g. PIPEX_FORKJOIN_NUM_WORKERS.
	DefaultEnvPrefix = "PIPEX"

	DefaultConfigName = "pipex.config"
	DefaultConfigType = "yml"
	DefaultConfigPath = "/etc/pipex"

	// DefaultNumWorkers of 0 tells forkjoin.Options.withDefaults to use
	// runtime.NumCPU(); it is not resolved here so the same config works
	// unchanged across machines of different size.
	DefaultNumWorkers   = 0
	DefaultChunkSize    = 1
	DefaultQueueSize    = 20
	DefaultPollInterval = 2 * time.Second
	DefaultIgnoreError  = false
	DefaultStartMethod  = "spawn"

	DefaultBucketWriteMode     = "stream"
	DefaultBucketBatchSize     = 1
	DefaultBucketFlushInterval = 5 * time.Second
	DefaultBucketBaseDir       = "./pipex-buckets"
)

// Config is the top-level run configuration.
type Config struct {
	// ForkJoin configures every fork-join worker pool's sizing and
	// failure handling.
	ForkJoin ForkJoinConfig `json:"forkjoin" mapstructure:"forkjoin"`

	// Bucket configures default write behavior and storage location for
	// bucket-backed sources/sinks.
	Bucket BucketConfig `json:"bucket" mapstructure:"bucket"`

	// Logging controls where run logs are written.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ForkJoinConfig mirrors forkjoin.Options; it exists separately so it can
// be bound to environment variables and a config file without forkjoin
// importing Viper.
type ForkJoinConfig struct {
	// NumWorkers of 0 defers to runtime.NumCPU() at pool construction time.
	NumWorkers int `json:"num_workers,omitempty" mapstructure:"num_workers"`

	// ChunkSize is how many records the producer batches per queue item.
	ChunkSize int `json:"chunk_size,omitempty" mapstructure:"chunk_size"`

	// QueueSize is the per-worker backlog; the pool's actual queue
	// capacity is QueueSize*NumWorkers plus one end-of-stream slot per
	// worker.
	QueueSize int `json:"queue_size,omitempty" mapstructure:"queue_size"`

	// PollInterval bounds how long the consumer waits for a worker
	// before checking for cancellation.
	PollInterval time.Duration `json:"poll_interval,omitempty" mapstructure:"poll_interval"`

	// IgnoreError keeps the pool running past a worker failure instead
	// of propagating it as an IterationError.
	IgnoreError bool `json:"ignore_error,omitempty" mapstructure:"ignore_error"`

	// StartMethod only applies to process-mode pools; "spawn" is the
	// only method implementable without a real fork(2).
	StartMethod string `json:"start_method,omitempty" mapstructure:"start_method"`
}

// BucketConfig configures default Bucket.Options and storage location.
type BucketConfig struct {
	// WriteMode is one of "stream", "full_batch", "mini_batch".
	WriteMode string `json:"write_mode,omitempty" mapstructure:"write_mode"`

	// BatchSize only applies when WriteMode is "mini_batch".
	BatchSize int `json:"batch_size,omitempty" mapstructure:"batch_size"`

	// FlushInterval bounds how often metadata is flushed mid-rewrite.
	FlushInterval time.Duration `json:"flush_interval,omitempty" mapstructure:"flush_interval"`

	// BaseDir is the directory dirstore.Store roots its bucket scopes
	// under. kvstore.Open takes its database directory directly and does
	// not use it.
	BaseDir string `json:"base_dir,omitempty" mapstructure:"base_dir"`
}

// LoggingConfig controls run-level logging.
type LoggingConfig struct {
	// FilePath names the log file logging.WithLogger opens (empty means
	// stdout there). cmd/pipexctl does not read it and logs to stderr.
	FilePath string `json:"file_path,omitempty" mapstructure:"file_path"`

	// Verbose enables debug-level logging.
	Verbose bool `json:"verbose,omitempty" mapstructure:"verbose"`
}

// LoadConfig reads DefaultConfigName from DefaultConfigPath if present,
// layers in PIPEX_-prefixed environment variables, and decodes the result
// into a Config with defaults applied for anything left unset.
func LoadConfig() (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType(DefaultConfigType)
	v.AddConfigPath(DefaultConfigPath)

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fileNotFoundError := viper.ConfigFileNotFoundError{}
		if !errors.As(err, &fileNotFoundError) {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	//
	// ForkJoin configuration
	//
	_ = v.BindEnv("forkjoin.num_workers")
	v.SetDefault("forkjoin.num_workers", DefaultNumWorkers)

	_ = v.BindEnv("forkjoin.chunk_size")
	v.SetDefault("forkjoin.chunk_size", DefaultChunkSize)

	_ = v.BindEnv("forkjoin.queue_size")
	v.SetDefault("forkjoin.queue_size", DefaultQueueSize)

	_ = v.BindEnv("forkjoin.poll_interval")
	v.SetDefault("forkjoin.poll_interval", DefaultPollInterval)

	_ = v.BindEnv("forkjoin.ignore_error")
	v.SetDefault("forkjoin.ignore_error", DefaultIgnoreError)

	_ = v.BindEnv("forkjoin.start_method")
	v.SetDefault("forkjoin.start_method", DefaultStartMethod)

	//
	// Bucket configuration
	//
	_ = v.BindEnv("bucket.write_mode")
	v.SetDefault("bucket.write_mode", DefaultBucketWriteMode)

	_ = v.BindEnv("bucket.batch_size")
	v.SetDefault("bucket.batch_size", DefaultBucketBatchSize)

	_ = v.BindEnv("bucket.flush_interval")
	v.SetDefault("bucket.flush_interval", DefaultBucketFlushInterval)

	_ = v.BindEnv("bucket.base_dir")
	v.SetDefault("bucket.base_dir", DefaultBucketBaseDir)

	//
	// Logging configuration
	//
	_ = v.BindEnv("logging.file_path")
	v.SetDefault("logging.file_path", "")

	_ = v.BindEnv("logging.verbose")
	v.SetDefault("logging.verbose", false)

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)

	config := &Config{}
	if err := v.Unmarshal(config, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return config, nil
}
