package source_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipex-go/pipex/pkg/record"
	"github.com/pipex-go/pipex/pkg/source"
)

func values(t *testing.T, seq func(yield func(record.Record) bool)) []any {
	t.Helper()
	var out []any
	for r := range seq {
		out = append(out, r.Value())
	}
	return out
}

func TestFromValuesGenerates(t *testing.T) {
	s := source.FromValues(1, 2, 3)
	assert.Equal(t, []any{1, 2, 3}, values(t, s.Generate(context.Background())))
}

func TestListSourceSinkProcessAppends(t *testing.T) {
	var dest []record.Record
	sink := source.NewListSourceSink(&dest)
	upstream := func(yield func(record.Record) bool) {
		yield(record.New("a", "default", 1))
		yield(record.New("b", "default", 2))
	}
	for range sink.Process(context.Background(), upstream) {
	}
	assert.Len(t, dest, 2)
}

func TestConcatChainsSources(t *testing.T) {
	c := source.NewConcat(source.FromValues(1, 2), source.FromValues(3, 4))
	assert.Equal(t, []any{1, 2, 3, 4}, values(t, c.Generate(context.Background())))
}

func TestPrintSinkWritesAndReyields(t *testing.T) {
	var buf bytes.Buffer
	p := source.NewPrintSinkTo(&buf)
	upstream := func(yield func(record.Record) bool) {
		yield(record.New("a", "default", "hi"))
	}
	out := values(t, p.Process(context.Background(), upstream))
	assert.Equal(t, []any{"hi"}, out)
	assert.Contains(t, buf.String(), "hi")
}
