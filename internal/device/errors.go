package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist in the
	// Directory.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidUpdate is returned when an update is missing its device ID,
	// capability or attribute.
	ErrInvalidUpdate = errors.New("device: invalid update")

	// ErrInvalidShape is returned when a bootstrap shape is missing its ID
	// or name.
	ErrInvalidShape = errors.New("device: invalid shape")
)
