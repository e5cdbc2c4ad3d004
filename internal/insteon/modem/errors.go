package modem

import "errors"

// Domain errors for the modem package.
var (
	// ErrUnexpectedResponse is returned when the modem's reply does not decode
	// as the expected echo, or the echo does not repeat the command sent.
	ErrUnexpectedResponse = errors.New("modem: unexpected response")

	// ErrNoResponse is returned when the modem sends nothing within the
	// response timeout.
	ErrNoResponse = errors.New("modem: no response")

	// ErrIncompleteFrame is returned when the line goes quiet part way
	// through a frame.
	ErrIncompleteFrame = errors.New("modem: incomplete frame")

	// ErrReadFailed wraps errors from the underlying port.
	ErrReadFailed = errors.New("modem: read failed")

	// ErrWriteFailed wraps errors from the underlying port.
	ErrWriteFailed = errors.New("modem: write failed")

	// ErrNacked is returned by operations that cannot produce a result
	// without an Ack, such as reading the modem's own identity.
	ErrNacked = errors.New("modem: command not acknowledged")

	// ErrNoReplyShape is returned by Execute for messages that are not host
	// commands.
	ErrNoReplyShape = errors.New("modem: message has no reply shape")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("modem: session closed")
)
