package tunnel

import "errors"

var (
	// ErrTunnelUnavailable is returned when Start exhausts its dial
	// attempts. The supervisor keeps retrying in the background; the
	// bridge runs poll-only until a session comes up.
	ErrTunnelUnavailable = errors.New("tunnel: unavailable")

	// ErrNotStarted is returned by methods that need a started manager.
	ErrNotStarted = errors.New("tunnel: not started")
)
