// Command pipexctl wires a small demonstration pipeline together from
// this module's building blocks: a list source, a process-mode
// fork-joined transformer, and a bucket sink, driven by configuration
// loaded the house way (internal/config) and logged the house way
// (internal/logging). It doubles as the fork-join worker entry point: a
// subprocess-mode worker re-execs this same binary with
// PIPEX_FORKJOIN_WORKER set, so RunWorkerMain must be the first thing
// main does.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pipex-go/pipex/internal/config"
	"github.com/pipex-go/pipex/internal/logging"
	"github.com/pipex-go/pipex/pkg/bucket"
	"github.com/pipex-go/pipex/pkg/bucket/dirstore"
	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/forkjoin"
	"github.com/pipex-go/pipex/pkg/source"
	"github.com/pipex-go/pipex/pkg/transform"
)

func main() {
	if os.Getenv(forkjoin.WorkerEnv) != "" {
		forkjoin.RunWorkerMain()
		return
	}

	scope := flag.String("scope", "demo", "bucket scope to write the pipeline's output under")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipexctl: loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Logging.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx := logging.WithSlogLogger(context.Background(), logger)

	if err := run(ctx, cfg, *scope); err != nil {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

// run builds src ↦ tagger ↦ sinkBucket and executes it, demonstrating
// the chain algebra, a process-mode fork-join stage, and a bucket's
// rewrite-skip caching in one pass.
func run(ctx context.Context, cfg *config.Config, scope string) error {
	src := source.FromValues(1, 2, 3, 4, 5, 6, 7, 8)

	// Constant is Serializable (registered under "constant"), so
	// forkjoin.Parallel can hand it to a worker subprocess over the
	// registry-backed IPC path instead of just an in-process goroutine.
	tagger := forkjoin.Parallel(
		forkjoin.FromTransformer(transform.NewConstant(false, nil, map[string]any{"processed": true})),
		cfg.ForkJoin.ForkJoinOptions(),
	)

	store := dirstore.NewStore(cfg.Bucket.BaseDir)
	sinkBucket := bucket.New(store.Bucket(scope), cfg.Bucket.BucketOptions())

	ts := chain.NewTransformedSource(src, tagger)
	return chain.Drain(sinkBucket.Pipe(ctx, ts))
}
