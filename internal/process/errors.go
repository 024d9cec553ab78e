package process

import (
	"fmt"
	"time"
)

// LaunchError reports that the command could not be found or executed.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// KillTimeoutError reports that a killed child was not reaped in time.
// Running tells whether the pid was still alive when the wait gave up.
type KillTimeoutError struct {
	Pid     int
	Timeout time.Duration
	Running bool
}

func (e *KillTimeoutError) Error() string {
	return fmt.Sprintf("process %d not reaped within %s after kill (running=%t)", e.Pid, e.Timeout, e.Running)
}
