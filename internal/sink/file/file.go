package file

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/loykin/mlexec/internal/sink"
)

// Default rotation parameters, following lumberjack semantics.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Options controls rotation of the file sink.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Sink writes one JSON object per record (sink.Row) to a writer.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// New writes to w. It is not closed by Close.
func New(w io.Writer) *Sink { return &Sink{w: w} }

// Stdout writes records to standard output.
func Stdout() *Sink { return New(os.Stdout) }

// Stderr writes records to standard error.
func Stderr() *Sink { return New(os.Stderr) }

// Open writes to a lumberjack-rotated file at path.
func Open(path string, o Options) *Sink {
	w := &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(o.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(o.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(o.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   o.Compress,
	}
	return &Sink{w: w, c: w}
}

func (s *Sink) Accept(ctx context.Context, b sink.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	enc.SetEscapeHTML(false)
	for _, row := range sink.Rows(b) {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
