package sink

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// Record is one logical multi-line event. Body holds the joined lines in the
// source's charset; Headers carries annotations added before delivery.
type Record struct {
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Batch is an ordered group of records flushed together. Seq is 1-based
// and strictly increasing per source in emission order.
type Batch struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	Records   []Record  `json:"records"`
}

// Sink accepts completed batches. Accept must return promptly once ctx is
// done; a returned error drops the batch.
type Sink interface {
	Accept(ctx context.Context, b Batch) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, b Batch) error

func (f Func) Accept(ctx context.Context, b Batch) error { return f(ctx, b) }

// Close closes s when it holds resources.
func Close(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Row is the flattened per-record shape shared by the row-oriented sinks.
type Row struct {
	BatchID   string            `json:"batch_id"`
	BatchSeq  uint64            `json:"batch_seq"`
	Source    string            `json:"source"`
	Position  int               `json:"position"`
	Body      string            `json:"body"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Rows flattens b into one Row per record, preserving order.
func Rows(b Batch) []Row {
	rows := make([]Row, 0, len(b.Records))
	for i, r := range b.Records {
		rows = append(rows, Row{
			BatchID:   b.ID,
			BatchSeq:  b.Seq,
			Source:    b.Source,
			Position:  i,
			Body:      string(r.Body),
			Headers:   r.Headers,
			CreatedAt: b.CreatedAt.UTC(),
		})
	}
	return rows
}

// HeadersJSON renders headers for text columns; nil maps render as "{}".
func HeadersJSON(h map[string]string) string {
	if len(h) == 0 {
		return "{}"
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(b)
}
