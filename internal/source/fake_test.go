package source

import (
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/loykin/mlexec/internal/process"
)

// fakeProc serves a fixed stdout, or a pipe that stays open until Kill.
type fakeProc struct {
	pid    int
	stdout io.Reader
	stderr io.Reader
	w      *io.PipeWriter
	code   int

	once  sync.Once
	kills atomic.Int32
}

func newFakeProc(pid int, stdout, stderr string, code int) *fakeProc {
	return &fakeProc{pid: pid, stdout: strings.NewReader(stdout), stderr: strings.NewReader(stderr), code: code}
}

// newBlockingProc writes stdout and then blocks until Kill.
func newBlockingProc(pid int, stdout string) *fakeProc {
	pr, pw := io.Pipe()
	if stdout != "" {
		go func() { _, _ = pw.Write([]byte(stdout)) }()
	}
	return &fakeProc{pid: pid, stdout: pr, stderr: strings.NewReader(""), w: pw, code: 137}
}

func (p *fakeProc) Pid() int          { return p.pid }
func (p *fakeProc) Stdout() io.Reader { return p.stdout }
func (p *fakeProc) Stderr() io.Reader { return p.stderr }

func (p *fakeProc) Kill() (int, error) {
	code := process.ExitAlreadyReaped
	p.once.Do(func() {
		p.kills.Add(1)
		if p.w != nil {
			_ = p.w.Close()
		}
		code = p.code
	})
	return code, nil
}

// countingLauncher counts launches and delegates to next.
type countingLauncher struct {
	n    atomic.Int32
	next func(n int) (Process, error)
}

func (c *countingLauncher) launch(process.Spec) (Process, error) {
	n := int(c.n.Add(1))
	return c.next(n)
}

var errNoSuchBinary = errors.New("no such binary")
