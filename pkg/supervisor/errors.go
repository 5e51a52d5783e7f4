package supervisor

import "errors"

var (
	// ErrNotRegistered indicates an operation on an unknown worker id.
	ErrNotRegistered = errors.New("worker not registered")

	// ErrAlreadyRunning indicates a start or re-register against a
	// worker that is already starting or running.
	ErrAlreadyRunning = errors.New("worker already running")

	// ErrChannelFull indicates a non-blocking send found the command
	// channel at capacity. The caller may retry.
	ErrChannelFull = errors.New("command channel full")

	// ErrNoResult indicates the result channel was empty within the
	// polling window. Not a failure.
	ErrNoResult = errors.New("no result available")

	// ErrStopTimeout indicates the worker did not exit within the
	// stop timeout. The worker is not forcibly killed; the caller
	// decides how to escalate.
	ErrStopTimeout = errors.New("worker did not stop in time")
)
