package dispatch

import "errors"

var (
	// ErrUnsupportedCommand is returned when the target device does not
	// carry the capability, or the command fails registry validation.
	// Detected locally; nothing is sent.
	ErrUnsupportedCommand = errors.New("dispatch: unsupported command")

	// ErrDispatchFailed is returned when the cloud rejects the command
	// or the call fails. The optimistic update is not applied.
	ErrDispatchFailed = errors.New("dispatch: command failed")
)
