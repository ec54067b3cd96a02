package forkjoin

import (
	"context"
	"iter"
	"time"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// ForkJoin is the fan-out/fan-in transformer: num_workers workers run
// target concurrently over the upstream stream. There is no ordering
// guarantee between input and output order (spec §4.3/§5); record ids are
// preserved since each worker only ever transforms the records it
// receives.
type ForkJoin struct {
	target  Target
	mode    Mode
	options Options
}

// New builds a ForkJoin transformer running target under mode.
func New(mode Mode, target Target, opts Options) *ForkJoin {
	return &ForkJoin{target: target, mode: mode, options: opts.withDefaults()}
}

// Threaded builds a ForkJoin using in-process goroutine workers.
func Threaded(target Target, opts Options) *ForkJoin { return New(ModeThreaded, target, opts) }

// Parallel builds a ForkJoin using OS-process workers.
func Parallel(target Target, opts Options) *ForkJoin { return New(ModeProcess, target, opts) }

// OnBgThread is the convenience single-worker threaded form.
func OnBgThread(target Target, opts Options) *ForkJoin {
	opts.NumWorkers = 1
	return New(ModeThreaded, target, opts)
}

// OnBgProcess is the convenience single-worker process form.
func OnBgProcess(target Target, opts Options) *ForkJoin {
	opts.NumWorkers = 1
	return New(ModeProcess, target, opts)
}

func (f *ForkJoin) ChainHash() string {
	tag := "threaded"
	if f.mode == ModeProcess {
		tag = "parallel"
	}
	return chain.Hash(tag, f.target, f.options.NumWorkers, f.options.ChunkSize)
}

func (f *ForkJoin) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, f) }

// Transform runs the fork-join pool. Mid-stream failures (a worker's
// target chain raising, or the upstream source raising) surface as an
// *chain.IterationError panic once cleanup has completed, matching
// "re-raise once cleanup finished" from spec §4.3 — callers should drain
// the result with chain.Drain, or otherwise recover that type themselves.
func (f *ForkJoin) Transform(ctx context.Context, in iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		handles, inQ, outQ, err := spawnPool(ctx, f.mode, f.target, f.options)
		if err != nil {
			panic(&chain.IterationError{Err: err})
		}

		prod := newProducer(f.options.ChunkSize, f.options.PollInterval, inQ, len(handles))
		prod.start(ctx, in)

		consumeErr := f.consume(handles, outQ, yield)

		prod.askQuit()
		for _, h := range handles {
			h.interrupt()
		}
		prod.wait()
		for _, h := range handles {
			h.join()
		}

		if consumeErr == nil {
			consumeErr = prod.err
		}
		if consumeErr != nil {
			panic(&chain.IterationError{Err: consumeErr})
		}
	}
}

// consume is the calling goroutine's loop: it drains outQ until it has
// seen one sentinel per worker and the queue is empty, then collects each
// worker's terminal ctlResult. It stops early (without draining further or
// collecting ctlResults) if yield reports the downstream consumer is done.
func (f *ForkJoin) consume(handles []*workerHandle, outQ *Queue[chunk], yield func(record.Record) bool) error {
	doneWorkers := 0
	total := len(handles)
	var firstErr error

	for doneWorkers < total || !outQ.Empty() {
		c, ok := outQ.Get(f.options.PollInterval)
		if !ok {
			continue
		}
		if c.sentinel {
			doneWorkers++
			continue
		}
		for _, r := range c.records {
			if !yield(r) {
				return firstErr
			}
		}
	}

	for _, h := range handles {
		if res, ok := h.ctlOut.Get(10 * time.Millisecond); ok {
			if !res.ok && !f.options.IgnoreError && firstErr == nil {
				firstErr = res.err
			}
		}
	}
	return firstErr
}
