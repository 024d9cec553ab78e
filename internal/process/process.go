package process

import (
	"io"
	"math"
	"os/exec"
	"sync"
	"time"
)

// Sentinel exit statuses returned by Kill.
const (
	ExitNotStarted    = math.MinInt32 / 2 // nil runner or process never started
	ExitAlreadyReaped = math.MinInt32     // destroy-and-reap already ran for this runner
	ExitUnknown       = math.MinInt32 + 1 // reap did not complete
)

// DefaultKillTimeout bounds how long Kill waits for the child to be reaped.
const DefaultKillTimeout = 5 * time.Second

// Runner owns one started child process and its output pipes.
// Kill may be called from any goroutine; destroy-and-reap runs once.
type Runner struct {
	spec        Spec
	cmd         *exec.Cmd
	stdout      io.ReadCloser
	stderr      io.ReadCloser
	killTimeout time.Duration

	mu     sync.Mutex
	reaped bool
	status int
}

// Start launches spec with stdout and stderr piped back to the caller.
// Any failure to build, find or execute the command is a *LaunchError.
func Start(spec Spec, killTimeout time.Duration) (*Runner, error) {
	cmd, err := spec.BuildCommand()
	if err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if spec.Env != nil {
		cmd.Env = spec.Env
	}
	configureSysProcAttr(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}
	if killTimeout <= 0 {
		killTimeout = DefaultKillTimeout
	}
	return &Runner{
		spec:        spec,
		cmd:         cmd,
		stdout:      stdout,
		stderr:      stderr,
		killTimeout: killTimeout,
	}, nil
}

func (r *Runner) Spec() Spec { return r.spec }

func (r *Runner) Pid() int {
	if r == nil || r.cmd == nil || r.cmd.Process == nil {
		return 0
	}
	return r.cmd.Process.Pid
}

// Stdout is readable until the process ends or is killed.
func (r *Runner) Stdout() io.Reader { return r.stdout }

// Stderr is readable until the process ends or is killed.
func (r *Runner) Stderr() io.Reader { return r.stderr }

// Alive reports whether the child is still running (zombies count as gone).
func (r *Runner) Alive() bool { return Alive(r.Pid()) }

// Kill forcibly terminates the process group and blocks until the child is
// reaped, returning its exit status. Only the first call destroys and reaps;
// later calls return ExitAlreadyReaped, and a nil or never-started runner
// returns ExitNotStarted. When the child is not reaped within the kill
// timeout the pipes are closed so readers unblock, and a *KillTimeoutError
// is returned.
func (r *Runner) Kill() (int, error) {
	if r == nil || r.cmd == nil || r.cmd.Process == nil {
		return ExitNotStarted, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reaped {
		return ExitAlreadyReaped, nil
	}
	r.reaped = true

	_ = killGroup(r.cmd.Process)
	ch := make(chan struct{})
	go func() {
		// Wait closes both pipes once the child has exited.
		_ = r.cmd.Wait()
		close(ch)
	}()
	t := time.NewTimer(r.killTimeout)
	defer t.Stop()
	select {
	case <-ch:
		r.status = exitStatus(r.cmd.ProcessState)
		return r.status, nil
	case <-t.C:
		_ = r.stdout.Close()
		_ = r.stderr.Close()
		r.status = ExitUnknown
		return ExitUnknown, &KillTimeoutError{Pid: r.cmd.Process.Pid, Timeout: r.killTimeout, Running: r.Alive()}
	}
}
