package bridge

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("bridge: already started")

	// ErrNotStarted is returned by operations that need a running bridge.
	ErrNotStarted = errors.New("bridge: not started")
)
