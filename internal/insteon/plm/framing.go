package plm

import (
	"errors"
	"fmt"
)

// ErrUnknownFrame is returned for a code byte with no known frame length.
var ErrUnknownFrame = errors.New("plm: unknown frame code")

// Frame lengths including the start byte. Host command codes map to the
// length of the modem's echo of that command.
var frameLengths = map[byte]int{
	0x50: 11,
	0x51: 25,
	0x53: 10,
	0x54: 3,
	0x57: 10,
	0x58: 3,
	0x60: 9,
	0x61: 6,
	0x62: 9,
	0x69: 3,
	0x6a: 3,
	0x6b: 4,
	0x73: 6,
}

// extendedEchoLen is the echo length of a SendMessage with the extended flag.
const extendedEchoLen = 23

// FrameLength reports how many bytes the frame at the start of buf occupies.
// It returns 0 and a nil error when more bytes are needed to decide.
//
// A lone Nack is a complete one-byte frame.
func FrameLength(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	switch buf[0] {
	case Nack.Code():
		return 1, nil
	case StartByte.Code():
	default:
		return 0, fmt.Errorf("%w: leading byte 0x%02x", ErrUnknownFrame, buf[0])
	}
	if len(buf) < 2 {
		return 0, nil
	}
	n, ok := frameLengths[buf[1]]
	if !ok {
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnknownFrame, buf[1])
	}
	if buf[1] == SendMessageCmd.Code() {
		if len(buf) < 6 {
			return 0, nil
		}
		if MessageFlags.FromByte(buf[5]).Bool("extended") {
			return extendedEchoLen, nil
		}
	}
	return n, nil
}
