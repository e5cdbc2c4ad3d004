package codec

import (
	"fmt"
	"strings"
)

// Failure describes why a field type could not decode a buffer.
//
// Failures nest: a composite that fails in one of its slots wraps the slot's
// own failure in Cause. Depth counts the bytes successfully consumed, from the
// offset the outermost attempt started at, before the innermost failure.
// Family dispatch uses Depth to pick the most informative failure.
type Failure struct {
	// Type is the name of the field type that failed.
	Type string

	// Slot is the composite slot being decoded, empty for leaf types.
	Slot string

	// Offset is the buffer offset at which this type started decoding.
	Offset int

	// Depth is how many bytes were consumed before the failure.
	Depth int

	// Reason is a short human-readable explanation.
	Reason string

	// Cause is the nested failure that triggered this one, if any.
	Cause *Failure
}

// Error implements error.
func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("codec: ")
	for cur := f; cur != nil; cur = cur.Cause {
		if cur != f {
			b.WriteString(" > ")
		}
		b.WriteString(cur.Type)
		if cur.Slot != "" {
			b.WriteString(".")
			b.WriteString(cur.Slot)
		}
	}
	inner := f.Innermost()
	fmt.Fprintf(&b, " at offset %d: %s", inner.Offset, inner.Reason)
	return b.String()
}

// Unwrap lets errors.Is match ErrNoMatch.
func (f *Failure) Unwrap() error {
	return ErrNoMatch
}

// Innermost returns the leaf failure at the bottom of the Cause chain.
func (f *Failure) Innermost() *Failure {
	cur := f
	for cur.Cause != nil {
		cur = cur.Cause
	}
	return cur
}

// shortBuffer builds the failure for a leaf that ran out of input.
func shortBuffer(typeName string, offset, need int, buf []byte) *Failure {
	have := len(buf) - offset
	if have < 0 || offset < 0 {
		have = 0
	}
	return &Failure{
		Type:   typeName,
		Offset: offset,
		Reason: fmt.Sprintf("need %d byte(s), have %d", need, have),
	}
}
