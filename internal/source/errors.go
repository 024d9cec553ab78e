package source

import (
	"errors"
	"fmt"
)

var (
	ErrStopped        = errors.New("source stopped")
	ErrAlreadyStarted = errors.New("source already started")
)

// ReadError wraps a failure reading the process output stream.
type ReadError struct {
	Pid int
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read output of pid %d: %v", e.Pid, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// SinkError wraps a failure (or panic) of Sink.Accept. The batch is dropped.
type SinkError struct {
	BatchID string
	Seq     uint64
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink rejected batch %d (%s): %v", e.Seq, e.BatchID, e.Err)
}
func (e *SinkError) Unwrap() error { return e.Err }
