package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/pipex-go/pipex/pkg/chain"
	"github.com/pipex-go/pipex/pkg/record"
)

// PrintSink writes each record's active value to its writer (stdout by
// default) and re-yields it unchanged. It is registered under the factory
// name "print".
type PrintSink struct {
	w io.Writer
}

// NewPrintSink builds a PrintSink writing to os.Stdout.
func NewPrintSink() *PrintSink { return &PrintSink{w: os.Stdout} }

// NewPrintSinkTo builds a PrintSink writing to w, for tests and non-stdout
// uses.
func NewPrintSinkTo(w io.Writer) *PrintSink { return &PrintSink{w: w} }

func (p *PrintSink) ChainHash() string { return chain.Hash("print") }

func (p *PrintSink) Flatten(tokens *[]chain.Element) { *tokens = append(*tokens, p) }

func (p *PrintSink) Process(_ context.Context, upstream iter.Seq[record.Record]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for r := range upstream {
			fmt.Fprintf(p.w, "%#v\n", r.Value())
			if !yield(r) {
				return
			}
		}
	}
}

func (p *PrintSink) FetchSinkDataVersion(context.Context) chain.SinkDataVersion {
	return chain.SinkDataVersion{}
}

func (p *PrintSink) FactoryName() string { return "print" }

func (p *PrintSink) FactoryArgs() ([]byte, error) { return json.Marshal(struct{}{}) }

func init() {
	chain.Register("print", func(json.RawMessage) (chain.PipeChain, error) { return NewPrintSink(), nil })
}
