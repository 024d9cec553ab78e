// Package framer turns a stream of lines into terminator-delimited
// multi-line records grouped into fixed-size batches.
package framer

import (
	"errors"
	"io"

	"github.com/loykin/mlexec/internal/sink"
)

// Config holds the framing parameters.
type Config struct {
	Terminator      string
	Join            string
	StripTerminator bool
	BatchSize       int
	Charset         Charset
}

var ErrEmptyTerminator = errors.New("line terminator must not be empty")

// Framer reads one stream to its end. It is not safe for concurrent use.
type Framer struct {
	cfg     Config
	acc     *Accumulator
	batcher *Batcher

	// OnRecord, when set, is called after each completed record.
	OnRecord func()

	events uint64
}

func New(cfg Config, emit func([]sink.Record)) (*Framer, error) {
	if cfg.Terminator == "" {
		return nil, ErrEmptyTerminator
	}
	return &Framer{
		cfg:     cfg,
		acc:     NewAccumulator(cfg.Terminator, cfg.Join, cfg.StripTerminator),
		batcher: NewBatcher(cfg.BatchSize, emit),
	}, nil
}

// Consume reads r until EOF or a read error, emitting batches as they
// fill. A partial batch is flushed before returning; lines of an
// unterminated record are dropped. EOF yields a nil error.
func (f *Framer) Consume(r io.Reader) error {
	lr := NewLineReader(f.cfg.Charset.NewReader(r))
	defer f.finish()
	for {
		line, err := lr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		f.Line(line)
	}
}

// Line feeds a single line.
func (f *Framer) Line(line string) {
	text, ok := f.acc.Feed(line)
	if !ok {
		return
	}
	f.events++
	f.batcher.Add(sink.Record{Body: f.cfg.Charset.Encode(text)})
	if f.OnRecord != nil {
		f.OnRecord()
	}
}

func (f *Framer) finish() {
	f.batcher.Flush()
	f.acc.Reset()
}

// Events reports how many records have been completed.
func (f *Framer) Events() uint64 { return f.events }
