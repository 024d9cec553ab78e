// Package annotate adds header metadata to records before they reach a sink.
package annotate

import (
	"context"
	"log/slog"

	"github.com/loykin/mlexec/internal/sink"
)

// Annotator mutates record headers in place. Headers maps are non-nil.
type Annotator interface {
	Annotate(records []sink.Record)
}

// AnnotatorFunc adapts a function to Annotator.
type AnnotatorFunc func(records []sink.Record)

func (f AnnotatorFunc) Annotate(records []sink.Record) { f(records) }

// Sink runs annotators in order and then forwards the batch.
type Sink struct {
	next       sink.Sink
	annotators []Annotator
}

// Wrap decorates next. With no annotators next is returned unchanged.
func Wrap(next sink.Sink, annotators ...Annotator) sink.Sink {
	if len(annotators) == 0 {
		return next
	}
	return &Sink{next: next, annotators: annotators}
}

func (s *Sink) Accept(ctx context.Context, b sink.Batch) error {
	for i := range b.Records {
		if b.Records[i].Headers == nil {
			b.Records[i].Headers = make(map[string]string)
		}
	}
	for _, a := range s.annotators {
		a.Annotate(b.Records)
	}
	return s.next.Accept(ctx, b)
}

// Close closes the wrapped sink.
func (s *Sink) Close() error { return sink.Close(s.next) }

func logOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
