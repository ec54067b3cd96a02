package forkjoin

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"
)

// Mode selects how fork-join workers execute.
type Mode int

const (
	// ModeThreaded runs every worker as an in-process goroutine over
	// in-memory channels.
	ModeThreaded Mode = iota
	// ModeProcess runs every worker as a separate OS process,
	// communicating over stdin/stdout with the configured StartMethod.
	ModeProcess
)

// Options configures a ForkJoin operator's worker pool. Zero values are
// filled in by withDefaults the same way the original implementation's
// keyword defaults work.
type Options struct {
	NumWorkers   int
	ChunkSize    int
	QueueSize    int
	PollInterval time.Duration
	IgnoreError  bool
	ErrorLogger  func(format string, args ...any)
	// StartMethod only applies in Process mode: "spawn" re-execs this
	// binary fresh for each worker (the only start method implementable
	// without a fork(2) equivalent in the Go runtime).
	StartMethod string
}

func (o Options) withDefaults() Options {
	if o.NumWorkers <= 0 {
		o.NumWorkers = runtime.NumCPU()
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 20
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.ErrorLogger == nil {
		o.ErrorLogger = func(format string, args ...any) { log.Printf(format, args...) }
	}
	if o.StartMethod == "" {
		o.StartMethod = "spawn"
	}
	return o
}

// queueCapacity is queue_size*num_workers + num_workers: the extra room
// is for one end-of-stream sentinel per worker.
func (o Options) queueCapacity() int {
	return o.QueueSize*o.NumWorkers + o.NumWorkers
}

// workerHandle is what the pool's producer/consumer loop sees regardless
// of whether the worker behind it is a goroutine or a subprocess: a
// uniform set of queues plus lifecycle hooks.
type workerHandle struct {
	name   string
	inQ    *Queue[chunk]
	outQ   *Queue[chunk]
	ctlIn  *Queue[quitSignal]
	ctlOut *Queue[ctlResult]

	start func(ctx context.Context)
	join  func()
}

func (h *workerHandle) interrupt() { h.ctlIn.Put(quitSignal{}, time.Second) }

// spawnPool builds numWorkers worker handles sharing one inQ/outQ pair (so
// any worker can claim the next chunk) and per-worker control queues, and
// starts each one per mode.
func spawnPool(ctx context.Context, mode Mode, target Target, opts Options) ([]*workerHandle, *Queue[chunk], *Queue[chunk], error) {
	capacity := opts.queueCapacity()
	inQ := NewQueue[chunk](capacity)
	outQ := NewQueue[chunk](capacity)

	handles := make([]*workerHandle, 0, opts.NumWorkers)
	for i := 0; i < opts.NumWorkers; i++ {
		var h *workerHandle
		var err error
		switch mode {
		case ModeThreaded:
			h = newThreadedHandle(i, target, inQ, outQ, opts)
		case ModeProcess:
			h, err = newProcessHandle(i, target, inQ, outQ, opts)
		default:
			err = fmt.Errorf("forkjoin: unknown mode %v", mode)
		}
		if err != nil {
			for _, started := range handles {
				started.interrupt()
				started.join()
			}
			return nil, nil, nil, err
		}
		h.start(ctx)
		handles = append(handles, h)
	}
	return handles, inQ, outQ, nil
}

func newThreadedHandle(index int, target Target, inQ, outQ *Queue[chunk], opts Options) *workerHandle {
	name := fmt.Sprintf("WorkerThread[%d]", index)
	w := &worker{
		name:         name,
		target:       target,
		chunkSize:    opts.ChunkSize,
		pollInterval: opts.PollInterval,
		ignoreError:  opts.IgnoreError,
		errorLogger:  opts.ErrorLogger,
		inQ:          inQ,
		outQ:         outQ,
		ctlIn:        NewQueue[quitSignal](1),
		ctlOut:       NewQueue[ctlResult](1),
	}
	done := make(chan struct{})
	return &workerHandle{
		name:   name,
		inQ:    inQ,
		outQ:   outQ,
		ctlIn:  w.ctlIn,
		ctlOut: w.ctlOut,
		start: func(ctx context.Context) {
			go func() {
				defer close(done)
				w.run(ctx)
			}()
		},
		join: func() { <-done },
	}
}
