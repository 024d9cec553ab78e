package source

import (
	"errors"
	"io"
	"log/slog"

	"github.com/loykin/mlexec/internal/framer"
	"github.com/loykin/mlexec/internal/metrics"
)

// DrainOptions configures Drain.
type DrainOptions struct {
	Log     bool // log every line at info level
	Source  string
	Charset framer.Charset
	Logger  *slog.Logger
}

// Drain reads r line by line until EOF or a read error so the child never
// blocks on a full stderr pipe. It returns the number of lines read.
func Drain(r io.Reader, o DrainOptions) uint64 {
	l := o.Logger
	if l == nil {
		l = slog.Default()
	}
	lr := framer.NewLineReader(o.Charset.NewReader(r))
	var seq uint64
	for {
		line, err := lr.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.Debug("stderr drain ended", "error", err)
			}
			return seq
		}
		seq++
		metrics.IncStderrLine(o.Source)
		if o.Log {
			l.Info("stderr", "seq", seq, "line", line)
		}
	}
}
