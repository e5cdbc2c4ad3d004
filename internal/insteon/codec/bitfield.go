package codec

import (
	"fmt"
	"strings"
)

// BitField names a range of bits inside a byte.
//
// Offset counts from the least significant bit. A field with Width 3 and
// Offset 5 covers bits 5 to 7 and holds values 0 to 7.
type BitField struct {
	// Name is the key used by Flags.Get and Flags.Set.
	Name string

	// Width is the number of bits, 1 to 8.
	Width uint8

	// Offset is the position of the lowest bit, 0 to 7.
	Offset uint8
}

// mask returns the field's bits in place.
func (f BitField) mask() byte {
	return byte(((1 << f.Width) - 1) << f.Offset)
}

// max returns the largest value the field can hold.
func (f BitField) max() uint8 {
	return uint8((1 << f.Width) - 1)
}

// Layout is a byte subdivided into named, non-overlapping bit fields.
// A *Layout is the field Type; Flags is the value it decodes to.
//
// Bits not covered by any field are carried through untouched, so a byte
// read from the wire encodes back to the same byte even when the layout
// only names some of its bits. Message flags and the IM configuration byte
// are both declared this way.
type Layout struct {
	name   string
	fields []BitField
	index  map[string]int
}

// NewLayout validates and builds a bit field layout.
//
// Returns ErrInvalidLayout when a field has no name, does not fit in a
// byte, repeats a name or overlaps an earlier field.
func NewLayout(name string, fields ...BitField) (*Layout, error) {
	l := &Layout{
		name:   name,
		fields: append([]BitField(nil), fields...),
		index:  make(map[string]int, len(fields)),
	}
	var used byte
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: %s field %d has no name", ErrInvalidLayout, name, i)
		}
		if f.Width == 0 || int(f.Width)+int(f.Offset) > 8 {
			return nil, fmt.Errorf("%w: %s.%s does not fit in a byte", ErrInvalidLayout, name, f.Name)
		}
		if _, dup := l.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s.%s declared twice", ErrInvalidLayout, name, f.Name)
		}
		if used&f.mask() != 0 {
			return nil, fmt.Errorf("%w: %s.%s overlaps another field", ErrInvalidLayout, name, f.Name)
		}
		used |= f.mask()
		l.index[f.Name] = i
	}
	return l, nil
}

// MustLayout is like NewLayout but panics on error. It is intended for
// package-level catalog declarations.
func MustLayout(name string, fields ...BitField) *Layout {
	l, err := NewLayout(name, fields...)
	if err != nil {
		panic(err)
	}
	return l
}

// Name implements Type.
func (l *Layout) Name() string { return l.name }

// Fields returns the declared fields in order.
func (l *Layout) Fields() []BitField {
	return append([]BitField(nil), l.fields...)
}

// FromByte wraps a raw byte in this layout.
func (l *Layout) FromByte(b byte) Flags {
	return Flags{layout: l, raw: b}
}

// Make builds a Flags value from named field values. Fields not mentioned
// are zero.
func (l *Layout) Make(values map[string]uint8) (Flags, error) {
	f := Flags{layout: l}
	for name, v := range values {
		if err := f.Set(name, v); err != nil {
			return Flags{}, err
		}
	}
	return f, nil
}

// Accepts implements Type.
func (l *Layout) Accepts(v Value) bool {
	f, ok := v.(Flags)
	return ok && f.layout == l
}

// Decode implements Type.
func (l *Layout) Decode(buf []byte, offset int) (Value, int, *Failure) {
	if offset < 0 || offset >= len(buf) {
		return nil, 0, shortBuffer(l.name, offset, 1, buf)
	}
	return Flags{layout: l, raw: buf[offset]}, 1, nil
}

// field looks up a field by name.
func (l *Layout) field(name string) (BitField, error) {
	i, ok := l.index[name]
	if !ok {
		return BitField{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, l.name, name)
	}
	return l.fields[i], nil
}

// Flags is a byte interpreted through a Layout.
//
// Setting fields is order-independent: each Set touches only its own bits.
type Flags struct {
	layout *Layout
	raw    byte
}

// Layout returns the layout the flags were built from.
func (f Flags) Layout() *Layout { return f.layout }

// Byte returns the packed byte.
func (f Flags) Byte() byte { return f.raw }

// Get returns the value of the named field.
func (f Flags) Get(name string) (uint8, error) {
	if f.layout == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	bf, err := f.layout.field(name)
	if err != nil {
		return 0, err
	}
	return (f.raw & bf.mask()) >> bf.Offset, nil
}

// Bool returns the named field as a boolean. Unknown fields read as false.
func (f Flags) Bool(name string) bool {
	v, err := f.Get(name)
	return err == nil && v != 0
}

// Set stores v in the named field.
func (f *Flags) Set(name string, v uint8) error {
	if f.layout == nil {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	bf, err := f.layout.field(name)
	if err != nil {
		return err
	}
	if v > bf.max() {
		return fmt.Errorf("%w: %s.%s=%d (max %d)", ErrFieldOverflow, f.layout.name, name, v, bf.max())
	}
	f.raw = f.raw&^bf.mask() | (v<<bf.Offset)&bf.mask()
	return nil
}

// With returns a copy of f with the named field set.
func (f Flags) With(name string, v uint8) (Flags, error) {
	if err := f.Set(name, v); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// AppendTo implements Value.
func (f Flags) AppendTo(dst []byte) []byte { return append(dst, f.raw) }

// String implements Value.
func (f Flags) String() string {
	if f.layout == nil {
		return fmt.Sprintf("Flags(0x%02x)", f.raw)
	}
	parts := make([]string, 0, len(f.layout.fields))
	for _, bf := range f.layout.fields {
		parts = append(parts, fmt.Sprintf("%s=%d", bf.Name, (f.raw&bf.mask())>>bf.Offset))
	}
	return fmt.Sprintf("%s{%s}", f.layout.name, strings.Join(parts, ", "))
}
