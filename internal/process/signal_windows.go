//go:build windows

package process

import (
	"errors"
	"os"
)

// killGroup terminates the process; Windows has no group-wide kill here.
func killGroup(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func exitStatus(ps *os.ProcessState) int {
	if ps == nil {
		return ExitUnknown
	}
	return ps.ExitCode()
}
