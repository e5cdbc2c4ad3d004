package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a decoded field value. Every value knows its own wire form.
type Value interface {
	// AppendTo appends the wire bytes of the value to dst.
	AppendTo(dst []byte) []byte

	// String returns a human-readable rendering for logs.
	String() string
}

// Type describes one kind of field: which values it accepts and how to
// recognise its bytes in a buffer.
type Type interface {
	// Name identifies the type in failures and logs.
	Name() string

	// Accepts reports whether v is a legal value for a slot of this type.
	Accepts(v Value) bool

	// Decode reads one value starting at offset. It returns the value and the
	// number of bytes consumed, or a non-nil *Failure.
	// An offset outside buf is a failure, never a panic.
	Decode(buf []byte, offset int) (Value, int, *Failure)
}

// Encode returns the wire bytes for v.
func Encode(v Value) []byte {
	return v.AppendTo(nil)
}

// Decode decodes one value of type t from buf at offset.
//
// It is the outermost decode entry point: a failure is returned as an error
// (always a *Failure) rather than a typed nil pointer.
func Decode(t Type, buf []byte, offset int) (Value, int, error) {
	v, n, f := t.Decode(buf, offset)
	if f != nil {
		return nil, 0, f
	}
	return v, n, nil
}

// DecodeAll decodes consecutive values of type t until buf is exhausted.
//
// Values decoded before a failure are returned together with the failure,
// which makes it suitable for best-effort interpretation of captured traffic.
func DecodeAll(t Type, buf []byte) ([]Value, error) {
	var values []Value
	offset := 0
	for offset < len(buf) {
		v, n, f := t.Decode(buf, offset)
		if f != nil {
			return values, f
		}
		values = append(values, v)
		offset += n
	}
	return values, nil
}

// Equal reports whether two values are equal, comparing nested messages
// slot by slot.
func Equal(a, b Value) bool {
	am, ok := a.(Message)
	if !ok {
		return a == b
	}
	bm, ok := b.(Message)
	if !ok || am.shape != bm.shape || len(am.values) != len(bm.values) {
		return false
	}
	for i := range am.values {
		if !Equal(am.values[i], bm.values[i]) {
			return false
		}
	}
	return true
}

// HexDump renders bytes as lowercase two-digit hex separated by spaces.
func HexDump(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}

// =============================================================================
// Raw bytes
// =============================================================================

// Byte is a raw byte value.
//
// Bytes carry the slots that have no richer meaning for the codec, such as
// a device category, a link record's data bytes or a direct command's
// second byte.
type Byte byte

// AppendTo implements Value.
func (b Byte) AppendTo(dst []byte) []byte { return append(dst, byte(b)) }

// String implements Value.
func (b Byte) String() string { return fmt.Sprintf("0x%02x", byte(b)) }

// ByteType is the field type for a single raw byte. Any byte decodes.
type ByteType struct{}

// Name implements Type.
func (ByteType) Name() string { return "Byte" }

// Accepts implements Type.
func (ByteType) Accepts(v Value) bool {
	_, ok := v.(Byte)
	return ok
}

// Decode implements Type.
func (t ByteType) Decode(buf []byte, offset int) (Value, int, *Failure) {
	if offset < 0 || offset >= len(buf) {
		return nil, 0, shortBuffer(t.Name(), offset, 1, buf)
	}
	return Byte(buf[offset]), 1, nil
}

// =============================================================================
// Tags
// =============================================================================

// Tag is a fixed byte value bound to a family, such as Ack (0x06).
//
// Tags are plain comparable values: two tags are equal when family, name and
// code match. A Tag is both a Type (it decodes only its own byte) and the
// Value produced by that decode.
type Tag struct {
	family string
	name   string
	code   byte
}

// NewTag declares a tag. Tags are normally declared once as package variables
// and listed in their Family.
func NewTag(family, name string, code byte) Tag {
	return Tag{family: family, name: name, code: code}
}

// Name implements Type.
func (t Tag) Name() string { return t.name }

// Family returns the name of the family the tag belongs to.
func (t Tag) Family() string { return t.family }

// Code returns the wire byte.
func (t Tag) Code() byte { return t.code }

// IsZero reports whether t is the zero Tag.
func (t Tag) IsZero() bool { return t == Tag{} }

// AppendTo implements Value.
func (t Tag) AppendTo(dst []byte) []byte { return append(dst, t.code) }

// String implements Value.
func (t Tag) String() string { return t.name }

// Accepts implements Type.
func (t Tag) Accepts(v Value) bool {
	o, ok := v.(Tag)
	return ok && o == t
}

// Decode implements Type.
func (t Tag) Decode(buf []byte, offset int) (Value, int, *Failure) {
	if offset < 0 || offset >= len(buf) {
		return nil, 0, shortBuffer(t.name, offset, 1, buf)
	}
	if buf[offset] != t.code {
		return nil, 0, &Failure{
			Type:   t.name,
			Offset: offset,
			Reason: fmt.Sprintf("byte 0x%02x is not 0x%02x", buf[offset], t.code),
		}
	}
	return t, 1, nil
}

// =============================================================================
// Addresses
// =============================================================================

// addressLen is the wire length of an Insteon address.
const addressLen = 3

// Address is a 3-byte Insteon device address. It is comparable and usable as
// a map key.
//
// Addresses are written most significant byte first, both on the wire and
// in the dotted text form "aa.bb.cc". The text form is also used when an
// Address is marshalled to JSON or YAML.
type Address [addressLen]byte

// ParseAddress parses the dotted hex form "xx.xx.xx".
func ParseAddress(s string) (Address, error) {
	var a Address
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != addressLen {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		a[i] = byte(v)
	}
	return a, nil
}

// AppendTo implements Value.
func (a Address) AppendTo(dst []byte) []byte { return append(dst, a[:]...) }

// String implements Value. The format is lowercase "xx.xx.xx".
func (a Address) String() string {
	return fmt.Sprintf("%02x.%02x.%02x", a[0], a[1], a[2])
}

// MarshalText encodes the address in its dotted form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the dotted form.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AddressType is the field type for an Insteon address. It consumes three
// bytes and fails with a short buffer failure when fewer remain.
type AddressType struct{}

// Name implements Type.
func (AddressType) Name() string { return "Address" }

// Accepts implements Type.
func (AddressType) Accepts(v Value) bool {
	_, ok := v.(Address)
	return ok
}

// Decode implements Type.
func (t AddressType) Decode(buf []byte, offset int) (Value, int, *Failure) {
	if offset < 0 || len(buf)-offset < addressLen {
		return nil, 0, shortBuffer(t.Name(), offset, addressLen, buf)
	}
	var a Address
	copy(a[:], buf[offset:offset+addressLen])
	return a, addressLen, nil
}
