//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"
)

// killGroup sends SIGKILL to the process group led by p, falling back to the
// process itself when the group is already gone.
func killGroup(p *os.Process) error {
	err := syscall.Kill(-p.Pid, syscall.SIGKILL)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return p.Kill()
}

// exitStatus maps a reaped process state to an exit code; deaths by signal
// report 128+signal like a shell does.
func exitStatus(ps *os.ProcessState) int {
	if ps == nil {
		return ExitUnknown
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ps.ExitCode()
}
