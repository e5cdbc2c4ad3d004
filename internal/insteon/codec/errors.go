package codec

import "errors"

// Domain errors for the codec package.
var (
	// ErrNoMatch is the sentinel behind every *Failure.
	// Use errors.Is(err, codec.ErrNoMatch) to detect decode failures.
	ErrNoMatch = errors.New("codec: no match")

	// ErrInvalidAddress is returned when an address string is not xx.xx.xx hex.
	ErrInvalidAddress = errors.New("codec: invalid address")

	// ErrUnknownField is returned when a bit field name is not in the layout.
	ErrUnknownField = errors.New("codec: unknown bit field")

	// ErrFieldOverflow is returned when a value does not fit its bit width.
	ErrFieldOverflow = errors.New("codec: value does not fit bit field")

	// ErrInvalidLayout is returned for overlapping or out-of-range bit fields.
	ErrInvalidLayout = errors.New("codec: invalid bit field layout")

	// ErrInvalidShape is returned for malformed composite declarations.
	ErrInvalidShape = errors.New("codec: invalid composite shape")

	// ErrArguments is returned when a constructor receives the wrong values.
	ErrArguments = errors.New("codec: invalid constructor arguments")
)
