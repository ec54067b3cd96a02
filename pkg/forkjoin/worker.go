package forkjoin

import (
	"context"
	"fmt"
	"time"

	"github.com/pipex-go/pipex/pkg/record"
)

// chunk is a batch of records moving through the fork-join queues, or a
// sentinel chunk (sentinel true, records nil) marking "this worker's
// upstream reached EOF," the Go analog of putting a bare None onto the
// original implementation's queues.
type chunk struct {
	records  []record.Record
	sentinel bool
}

// ctlResult is the single message a worker posts to its control-out queue
// on the way out: ok=true for a clean finish, ok=false with err set when
// its target chain failed.
type ctlResult struct {
	ok  bool
	err error
}

// quitSignal is the only value ever put on a worker's control-in queue.
type quitSignal struct{}

// worker runs target against records pulled from inQ until a sentinel or
// an interrupt, chunking results back onto outQ. It always ends by
// posting exactly one ctlResult and one sentinel chunk, regardless of how
// it exited — this is what lets the consumer tell "this worker is done"
// apart from "this worker has more output coming."
type worker struct {
	name         string
	target       Target
	chunkSize    int
	pollInterval time.Duration
	ignoreError  bool
	errorLogger  func(format string, args ...any)

	inQ    *Queue[chunk]
	outQ   *Queue[chunk]
	ctlIn  *Queue[quitSignal]
	ctlOut *Queue[ctlResult]
}

// run is the worker's entire body; it is meant to be invoked either as a
// goroutine (threaded mode) or inside a subprocess's main (process mode).
func (w *worker) run(ctx context.Context) {
	err := w.safeRun(ctx)
	if err != nil && w.ignoreError {
		w.errorLogger("%s: ignoring error: %v", w.name, err)
		err = nil
	}
	w.ctlOut.Put(ctlResult{ok: err == nil, err: err}, w.pollInterval*10)
	w.outQ.Put(chunk{sentinel: true}, w.pollInterval*10)
}

func (w *worker) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, quit := r.(quitSignal); quit {
				err = nil
				return
			}
			err = fmt.Errorf("%s: %v", w.name, r)
			if !w.ignoreError {
				w.errorLogger("error raised in %s: %v", w.name, err)
			}
		}
	}()

	generated := w.target.Run(ctx, w.pullFromInQ())

	var buf []record.Record
	flush := func() {
		if len(buf) == 0 {
			return
		}
		records := append([]record.Record(nil), buf...)
		buf = buf[:0]
		w.putOutQWithBackoff(records)
	}
	for r := range generated {
		w.checkInterrupt()
		buf = append(buf, r)
		if len(buf) >= w.chunkSize {
			flush()
		}
	}
	flush()
	return nil
}

// pullFromInQ is the worker's own Source: it blocks on inQ with
// poll_interval timeouts so an interrupt is noticed promptly, the Go
// analog of SourceFromProducerInWorker.
func (w *worker) pullFromInQ() func(yield func(record.Record) bool) {
	return func(yield func(record.Record) bool) {
		for {
			w.checkInterrupt()
			c, ok := w.inQ.Get(w.pollInterval)
			if !ok {
				continue
			}
			if c.sentinel {
				return
			}
			for _, r := range c.records {
				if !yield(r) {
					return
				}
			}
		}
	}
}

func (w *worker) checkInterrupt() {
	if _, ok := w.ctlIn.GetNoWait(); ok {
		panic(quitSignal{})
	}
}

func (w *worker) putOutQWithBackoff(records []record.Record) {
	for {
		w.checkInterrupt()
		if w.outQ.Put(chunk{records: records}, w.pollInterval) {
			return
		}
	}
}

// interrupt asks the worker to quit at its next poll tick.
func (w *worker) interrupt() {
	w.ctlIn.Put(quitSignal{}, w.pollInterval*10)
}
