package insteon

import "errors"

// Domain errors for the Insteon bridge package.
var (
	// ErrInvalidTarget is returned when a topic target is neither a device
	// address, a group nor the modem.
	ErrInvalidTarget = errors.New("insteon: invalid target")

	// ErrInvalidCommand is returned for command names the bridge does not
	// know, or that do not apply to the target.
	ErrInvalidCommand = errors.New("insteon: invalid command")
)
