package forkjoin

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// WorkerEnv is the environment variable a re-exec'd worker process checks
// for at startup; its value is the worker's display name. cmd/pipexctl's
// main wires RunWorkerMain behind this so `go test`/other binaries that
// import this package don't accidentally behave as a worker.
const WorkerEnv = "PIPEX_FORKJOIN_WORKER"

// handshake is the first message sent down a worker subprocess's stdin:
// the serialized target chain (via chain.Describe) and the scalar options
// it needs, everything required to reconstruct a Target without
// depending on shared memory.
type handshake struct {
	Definition   *chain.PipelineDefinition
	ChunkSize    int
	PollInterval time.Duration
	IgnoreError  bool
}

// wireEnvelope is the one message shape relayed over the stdin/stdout gob
// stream; which of its fields is set tells a single decoder loop on either
// side what kind of message it is.
type wireEnvelope struct {
	Handshake *handshake
	Chunk     *chunk
	Quit      bool
	Ctl       *ctlResult
}

func init() {
	gob.Register(record.Record{})
}

// newProcessHandle spawns one worker subprocess (self-re-exec of the
// current binary with WorkerEnv set) and relays the parent-visible
// inQ/outQ/ctlIn/ctlOut queues onto its stdin/stdout, the Go analog of a
// multiprocessing.Process plus its inter-process Queues. Unlike the
// threaded handle, records crossing the boundary are whatever encoding
// encoding/gob can reach: user values embedded in record channels must
// themselves be gob-encodable, which is this package's equivalent of the
// original implementation's "must be picklable" constraint.
func newProcessHandle(index int, target Target, inQ, outQ *Queue[chunk], opts Options) (*workerHandle, error) {
	if _, ok := target.(interface {
		FactoryName() string
		FactoryArgs() ([]byte, error)
	}); !ok {
		return nil, fmt.Errorf("forkjoin: target %T is not serializable, required for process mode", target)
	}
	def, err := chain.Describe(target)
	if err != nil {
		return nil, fmt.Errorf("forkjoin: describing target chain for process mode: %w", err)
	}

	name := fmt.Sprintf("WorkerProcess[%d]", index)
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("forkjoin: resolving executable for %s: %w", opts.StartMethod, err)
	}

	cmd := exec.Command(exePath)
	cmd.Env = append(os.Environ(), WorkerEnv+"="+name)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	localCtlIn := NewQueue[quitSignal](1)
	localCtlOut := NewQueue[ctlResult](1)
	done := make(chan struct{})

	h := &workerHandle{
		name:   name,
		inQ:    inQ,
		outQ:   outQ,
		ctlIn:  localCtlIn,
		ctlOut: localCtlOut,
		join:   func() { <-done },
	}

	h.start = func(ctx context.Context) {
		if err := cmd.Start(); err != nil {
			localCtlOut.Put(ctlResult{ok: false, err: fmt.Errorf("forkjoin: starting worker process: %w", err)}, time.Second)
			outQ.Put(chunk{sentinel: true}, time.Second)
			close(done)
			return
		}

		enc := gob.NewEncoder(stdin)
		if err := enc.Encode(wireEnvelope{Handshake: &handshake{
			Definition:   def,
			ChunkSize:    opts.ChunkSize,
			PollInterval: opts.PollInterval,
			IgnoreError:  opts.IgnoreError,
		}}); err != nil {
			localCtlOut.Put(ctlResult{ok: false, err: fmt.Errorf("forkjoin: handshake with worker process: %w", err)}, time.Second)
			outQ.Put(chunk{sentinel: true}, time.Second)
			close(done)
			return
		}

		go relayToChild(stdin, inQ, localCtlIn)
		go relayFromChild(stdout, outQ, localCtlOut)
		go func() {
			_ = cmd.Wait()
			close(done)
		}()
	}

	return h, nil
}

// relayToChild forwards parent-side inQ chunks and ctlIn quit signals down
// to the subprocess, one gob-encoded envelope per message, until inQ
// yields a sentinel (the worker has nothing left to receive) or a quit
// signal fires.
func relayToChild(stdin io.WriteCloser, inQ *Queue[chunk], ctlIn *Queue[quitSignal]) {
	defer stdin.Close()
	enc := gob.NewEncoder(stdin)
	for {
		if _, ok := ctlIn.GetNoWait(); ok {
			_ = enc.Encode(wireEnvelope{Quit: true})
			return
		}
		c, ok := inQ.Get(200 * time.Millisecond)
		if !ok {
			continue
		}
		if err := enc.Encode(wireEnvelope{Chunk: &c}); err != nil {
			return
		}
		if c.sentinel {
			return
		}
	}
}

// relayFromChild decodes the subprocess's stdout stream back into the
// parent-visible outQ/ctlOut queues until the stream closes.
func relayFromChild(stdout io.ReadCloser, outQ *Queue[chunk], ctlOut *Queue[ctlResult]) {
	defer stdout.Close()
	dec := gob.NewDecoder(stdout)
	for {
		var env wireEnvelope
		if err := dec.Decode(&env); err != nil {
			return
		}
		if env.Chunk != nil {
			outQ.Put(*env.Chunk, 10*time.Second)
			if env.Chunk.sentinel {
				continue
			}
		}
		if env.Ctl != nil {
			ctlOut.Put(*env.Ctl, 10*time.Second)
		}
	}
}

// RunWorkerMain is the entry point a binary's main() calls when
// WorkerEnv is set; it performs the handshake on stdin, reconstructs the
// target chain from the registry, and runs the same worker loop a
// threaded handle would, relaying its queues over stdout instead of
// sharing memory. It exits the process when done: main calls it, when
// WorkerEnv is set, before any other startup work, and it does not return
// in that case.
func RunWorkerMain() {
	name := os.Getenv(WorkerEnv)
	dec := gob.NewDecoder(os.Stdin)

	var hsEnv wireEnvelope
	if err := dec.Decode(&hsEnv); err != nil || hsEnv.Handshake == nil {
		fmt.Fprintf(os.Stderr, "forkjoin worker %s: handshake failed: %v\n", name, err)
		os.Exit(1)
	}
	hs := hsEnv.Handshake

	target, err := hs.Definition.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "forkjoin worker %s: rebuilding target chain: %v\n", name, err)
		os.Exit(1)
	}
	asTarget, ok := target.(Target)
	if !ok {
		fmt.Fprintf(os.Stderr, "forkjoin worker %s: rebuilt chain %T is not a fork-join target\n", name, target)
		os.Exit(1)
	}

	inQ := NewQueue[chunk](64)
	outQ := NewQueue[chunk](64)
	ctlIn := NewQueue[quitSignal](1)
	ctlOut := NewQueue[ctlResult](1)

	go func() {
		for {
			var env wireEnvelope
			if err := dec.Decode(&env); err != nil {
				return
			}
			if env.Quit {
				ctlIn.Put(quitSignal{}, time.Second)
				continue
			}
			if env.Chunk != nil {
				inQ.Put(*env.Chunk, 10*time.Second)
			}
		}
	}()

	enc := gob.NewEncoder(os.Stdout)
	go func() {
		for {
			c, ok := outQ.Get(100 * time.Millisecond)
			if ok {
				_ = enc.Encode(wireEnvelope{Chunk: &c})
				continue
			}
			if r, ok := ctlOut.GetNoWait(); ok {
				for {
					if c, ok := outQ.GetNoWait(); ok {
						_ = enc.Encode(wireEnvelope{Chunk: &c})
						continue
					}
					break
				}
				_ = enc.Encode(wireEnvelope{Ctl: &r})
				return
			}
		}
	}()

	w := &worker{
		name:         name,
		target:       asTarget,
		chunkSize:    hs.ChunkSize,
		pollInterval: hs.PollInterval,
		ignoreError:  hs.IgnoreError,
		errorLogger:  func(format string, args ...any) { fmt.Fprintf(os.Stderr, format+"\n", args...) },
		inQ:          inQ,
		outQ:         outQ,
		ctlIn:        ctlIn,
		ctlOut:       ctlOut,
	}
	w.run(context.Background())
	time.Sleep(200 * time.Millisecond) // let the stdout relay flush the final ctlResult
	os.Exit(0)
}
