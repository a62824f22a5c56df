package capability

import "errors"

// Domain errors for the capability package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, capability.ErrUnknownCommand) {
//	    // handle unknown command case
//	}
var (
	// ErrUnknownCommand is returned when a command name is not part of the
	// capability's schema.
	ErrUnknownCommand = errors.New("capability: unknown command")

	// ErrArgumentCount is returned when a command is given the wrong number
	// of arguments.
	ErrArgumentCount = errors.New("capability: wrong argument count")
)
