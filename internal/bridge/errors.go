package bridge

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Execute after Close.
var ErrClosed = errors.New("bridge closed")

// ErrWorkerNotRunning is returned while the worker is down and a restart has
// not (yet) brought it back.
var ErrWorkerNotRunning = errors.New("worker not running")

// WorkerCrashedError reports that the worker subprocess exited while calls
// were outstanding. Every pending call fails with this error; the bridge is
// unusable until the worker is restarted.
type WorkerCrashedError struct {
	Err error // exit error from the process, may be nil on a clean exit
}

func (e *WorkerCrashedError) Error() string {
	if e.Err == nil {
		return "worker crashed: process exited"
	}
	return fmt.Sprintf("worker crashed: %v", e.Err)
}

func (e *WorkerCrashedError) Unwrap() error {
	return e.Err
}
