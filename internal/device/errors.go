package device

import "errors"

// Domain errors for the device package.
var (
	// ErrDeviceNotFound is returned when an address is not in the registry.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when registering an address that is already present.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrGroupNotFound is returned when a link group id is not in the registry.
	ErrGroupNotFound = errors.New("device: group not found")

	// ErrGroupExists is returned when registering a link group id that is already present.
	ErrGroupExists = errors.New("device: group already exists")

	// ErrInvalidDescriptions is returned when a device description file
	// lacks the required header columns.
	ErrInvalidDescriptions = errors.New("device: invalid description file")
)
