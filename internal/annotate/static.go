package annotate

import (
	"bufio"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/mlexec/internal/sink"
)

// Static sets key=value pairs read from a file on every record. The file is
// re-read for each batch so edits apply without a restart.
type Static struct {
	Path             string
	PreserveExisting bool
	Logger           *slog.Logger
}

func (s *Static) Annotate(records []sink.Record) {
	pairs := s.load()
	for _, r := range records {
		for _, kv := range pairs {
			if _, ok := r.Headers[kv[0]]; ok && s.PreserveExisting {
				continue
			}
			r.Headers[kv[0]] = kv[1]
		}
	}
}

// load returns the pairs up to the first malformed line.
func (s *Static) load() [][2]string {
	log := logOr(s.Logger)
	f, err := os.Open(filepath.Clean(s.Path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("static header file not found", "path", s.Path)
		} else {
			log.Warn("static header file unreadable", "path", s.Path, "error", err)
		}
		return nil
	}
	defer func() { _ = f.Close() }()

	var out [][2]string
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) == "" {
			log.Warn("static header not formatted as key=value", "path", s.Path, "line", n)
			return out
		}
		out = append(out, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
	}
	if err := sc.Err(); err != nil {
		log.Warn("static header file read failed", "path", s.Path, "error", err)
	}
	return out
}
