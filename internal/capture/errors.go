package capture

import (
	"errors"
	"fmt"
)

// ErrShutdownPending is returned by Start while the worker of a previous run
// is still finishing a tick that outlived the Stop grace period.
var ErrShutdownPending = errors.New("previous acquisition is still shutting down")

// SourceOpenError reports a frame source that could not be opened. The
// scheduler stays stopped; starting again retries the open.
type SourceOpenError struct {
	Source string
	Err    error
}

func (e *SourceOpenError) Error() string {
	return fmt.Sprintf("failed to open frame source %s: %v", e.Source, e.Err)
}

func (e *SourceOpenError) Unwrap() error {
	return e.Err
}

// TransientError is a failure confined to a single tick. It is logged and the
// stream carries on with the next tick.
type TransientError struct {
	Stage string
	Err   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("tick failed during %s: %v", e.Stage, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
