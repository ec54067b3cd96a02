package forkjoin

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/pipex-go/pipex/pkg/record"
)

// producer reads the upstream iterator on its own goroutine, buffers into
// chunkSize batches, and feeds inQ with a timeout loop that rechecks a
// shared quit flag on every tick — the Go analog of ProducerThread. After
// upstream is exhausted (or aborted) it posts one sentinel chunk per
// worker so every worker's own pull loop terminates.
type producer struct {
	chunkSize    int
	pollInterval time.Duration
	inQ          *Queue[chunk]
	numWorkers   int

	quit chan struct{}
	done chan struct{}
	err  error
}

func newProducer(chunkSize int, pollInterval time.Duration, inQ *Queue[chunk], numWorkers int) *producer {
	return &producer{
		chunkSize:    chunkSize,
		pollInterval: pollInterval,
		inQ:          inQ,
		numWorkers:   numWorkers,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (p *producer) start(ctx context.Context, upstream iter.Seq[record.Record]) {
	go p.run(ctx, upstream)
}

func (p *producer) run(ctx context.Context, upstream iter.Seq[record.Record]) {
	defer close(p.done)

	p.drainUpstream(ctx, upstream)

	for i := 0; i < p.numWorkers; i++ {
		p.inQ.Put(chunk{sentinel: true}, p.pollInterval*10)
	}
}

func (p *producer) drainUpstream(ctx context.Context, upstream iter.Seq[record.Record]) {
	defer func() {
		if r := recover(); r != nil {
			p.err = fmt.Errorf("source iteration failed: %v", r)
			p.askQuit()
		}
	}()

	var buf []record.Record
	flush := func() bool {
		if len(buf) == 0 {
			return true
		}
		records := append([]record.Record(nil), buf...)
		buf = buf[:0]
		for {
			select {
			case <-p.quit:
				return false
			case <-ctx.Done():
				return false
			default:
			}
			if p.inQ.Put(chunk{records: records}, p.pollInterval) {
				return true
			}
		}
	}

	for r := range upstream {
		select {
		case <-p.quit:
			return
		case <-ctx.Done():
			return
		default:
		}
		buf = append(buf, r)
		if len(buf) >= p.chunkSize {
			if !flush() {
				return
			}
		}
	}
	flush()
}

// askQuit signals the producer to stop pulling from upstream; safe to
// call multiple times and from any goroutine.
func (p *producer) askQuit() {
	select {
	case <-p.quit:
	default:
		close(p.quit)
	}
}

// wait blocks until the producer goroutine has returned.
func (p *producer) wait() { <-p.done }
