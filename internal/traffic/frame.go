package traffic

import (
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/modem"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
)

// Frame is one observed frame with its best-effort interpretation.
type Frame struct {
	Direction modem.Direction
	Sender    string
	Timestamp time.Time
	Bytes     []byte

	// Decoded holds the values that decoded, in order.
	Decoded []codec.Value

	// DecodeErr is set when some trailing bytes did not decode.
	DecodeErr error
}

// Describe decodes an observed frame with the family matching its
// direction.
func Describe(ev modem.TrafficEvent) Frame {
	family := plm.ModemMessage
	if ev.Direction == modem.CommandSent {
		family = plm.HostCommand
	}
	values, err := codec.DecodeAll(family, ev.Bytes)
	return Frame{
		Direction: ev.Direction,
		Sender:    ev.Sender,
		Timestamp: ev.Timestamp,
		Bytes:     ev.Bytes,
		Decoded:   values,
		DecodeErr: err,
	}
}

// Code returns the frame's command code: the byte after the start byte, or
// the only byte of a lone Nack.
func (f Frame) Code() byte {
	switch {
	case len(f.Bytes) >= 2 && f.Bytes[0] == plm.StartByte.Code():
		return f.Bytes[1]
	case len(f.Bytes) > 0:
		return f.Bytes[0]
	default:
		return 0
	}
}

// Summary renders the decoded values, or "?" when nothing decoded.
func (f Frame) Summary() string {
	if len(f.Decoded) == 0 {
		return "?"
	}
	parts := make([]string, len(f.Decoded))
	for i, v := range f.Decoded {
		parts[i] = v.String()
	}
	s := strings.Join(parts, " ")
	if f.DecodeErr != nil {
		s += " ?"
	}
	return s
}
