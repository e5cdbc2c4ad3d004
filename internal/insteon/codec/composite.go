package codec

import (
	"fmt"
	"strings"
)

// Slot is one named position in a Composite.
//
// Slots are declared with Field for values the caller supplies and Fixed
// for values implied by the type itself. Slot names are unique within a
// composite and are how a decoded Message is read back.
type Slot struct {
	// Name is the key used by Message.Get and the typed accessors.
	Name string

	// Type decodes and validates the slot's value.
	Type Type
}

// Field declares a variable slot.
func Field(name string, t Type) Slot {
	return Slot{Name: name, Type: t}
}

// Fixed declares a slot whose value is implied by its type, such as a Tag or
// a Composite with no variable slots. The slot is named after the type.
func Fixed(t Type) Slot {
	return Slot{Name: t.Name(), Type: t}
}

// Composite is an ordered, fixed-length message shape.
//
// A composite lists its slots in wire order. Decoding walks the slots left
// to right from the starting offset and stops at the first slot that fails;
// encoding concatenates each slot's bytes. Composites are themselves Types,
// so a shape can nest another, as an echo nests the command it repeats.
//
// Shapes are immutable once built and safe to share between goroutines.
type Composite struct {
	name     string
	slots    []Slot
	index    map[string]int
	variable int
}

// NewComposite validates and builds a message shape.
//
// Parameters:
//   - name: Identifies the shape in failures and in Message.String
//   - slots: The slots in wire order
//
// Returns:
//   - *Composite: The shape
//   - error: ErrInvalidShape if a slot has no type or name, or a name repeats
func NewComposite(name string, slots ...Slot) (*Composite, error) {
	c := &Composite{
		name:  name,
		slots: append([]Slot(nil), slots...),
		index: make(map[string]int, len(slots)),
	}
	for i, s := range slots {
		if s.Type == nil {
			return nil, fmt.Errorf("%w: %s slot %d has no type", ErrInvalidShape, name, i)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("%w: %s slot %d has no name", ErrInvalidShape, name, i)
		}
		if _, dup := c.index[s.Name]; dup {
			return nil, fmt.Errorf("%w: %s slot %q declared twice", ErrInvalidShape, name, s.Name)
		}
		c.index[s.Name] = i
		if _, fixed := impliedValue(s.Type); !fixed {
			c.variable++
		}
	}
	return c, nil
}

// MustComposite is like NewComposite but panics on error. It is intended for
// package-level catalog declarations.
func MustComposite(name string, slots ...Slot) *Composite {
	c, err := NewComposite(name, slots...)
	if err != nil {
		panic(err)
	}
	return c
}

// Name implements Type.
func (c *Composite) Name() string { return c.name }

// Slots returns the declared slots in order.
func (c *Composite) Slots() []Slot {
	return append([]Slot(nil), c.slots...)
}

// IsFixed reports whether every slot value is implied.
func (c *Composite) IsFixed() bool { return c.variable == 0 }

// New builds a message from the variable slot values, in slot order.
// Fixed slots are filled in automatically. Passing a value for every slot,
// fixed ones included, is also accepted.
//
// Each value must be accepted by its slot's type: a Byte for ByteType, an
// Address for AddressType, the exact Tag for a Tag slot and Flags of the
// same Layout for a bit field slot. Any other count or value returns
// ErrArguments.
func (c *Composite) New(args ...Value) (Message, error) {
	values := make([]Value, len(c.slots))
	switch len(args) {
	case len(c.slots):
		for i, s := range c.slots {
			if args[i] == nil || !s.Type.Accepts(args[i]) {
				return Message{}, c.argError(s, args[i])
			}
			values[i] = args[i]
		}
	case c.variable:
		next := 0
		for i, s := range c.slots {
			if v, fixed := impliedValue(s.Type); fixed {
				values[i] = v
				continue
			}
			arg := args[next]
			next++
			if arg == nil || !s.Type.Accepts(arg) {
				return Message{}, c.argError(s, arg)
			}
			values[i] = arg
		}
	default:
		return Message{}, fmt.Errorf("%w: %s takes %d values, got %d", ErrArguments, c.name, c.variable, len(args))
	}
	return Message{shape: c, values: values}, nil
}

// MustNew is like New but panics on error. Use it only with arguments whose
// types are known at compile time.
func (c *Composite) MustNew(args ...Value) Message {
	m, err := c.New(args...)
	if err != nil {
		panic(err)
	}
	return m
}

func (c *Composite) argError(s Slot, v Value) error {
	return fmt.Errorf("%w: %s.%s (%s) does not accept %v", ErrArguments, c.name, s.Name, s.Type.Name(), v)
}

// Accepts implements Type.
func (c *Composite) Accepts(v Value) bool {
	m, ok := v.(Message)
	return ok && m.shape == c
}

// Decode implements Type. Slots are decoded left to right; the first failing
// slot aborts the decode.
func (c *Composite) Decode(buf []byte, offset int) (Value, int, *Failure) {
	values := make([]Value, len(c.slots))
	cursor := offset
	for i, s := range c.slots {
		v, n, f := s.Type.Decode(buf, cursor)
		if f != nil {
			return nil, 0, &Failure{
				Type:   c.name,
				Slot:   s.Name,
				Offset: offset,
				Depth:  cursor - offset + f.Depth,
				Reason: f.Reason,
				Cause:  f,
			}
		}
		values[i] = v
		cursor += n
	}
	return Message{shape: c, values: values}, cursor - offset, nil
}

// impliedValue returns the value a slot of type t takes without an argument.
func impliedValue(t Type) (Value, bool) {
	switch t := t.(type) {
	case Tag:
		return t, true
	case *Composite:
		if !t.IsFixed() {
			return nil, false
		}
		m, err := t.New()
		if err != nil {
			return nil, false
		}
		return m, true
	}
	return nil, false
}

// Message is a decoded or constructed Composite value.
//
// A Message keeps a reference to its shape and one Value per slot. It is
// immutable: the accessors copy nothing out but offer no way to change a
// slot. The typed accessors (Byte, Address, Tag, Flags, Message) return the
// zero value when the slot is absent or has another type, so callers that
// care should check Is against the expected shape first.
type Message struct {
	shape  *Composite
	values []Value
}

// Shape returns the composite the message was built from.
func (m Message) Shape() *Composite { return m.shape }

// IsZero reports whether m is the zero Message.
func (m Message) IsZero() bool { return m.shape == nil }

// Is reports whether m was built from shape c.
func (m Message) Is(c *Composite) bool { return m.shape == c }

// AppendTo implements Value.
func (m Message) AppendTo(dst []byte) []byte {
	for _, v := range m.values {
		dst = v.AppendTo(dst)
	}
	return dst
}

// String implements Value. Fixed tag slots are omitted.
func (m Message) String() string {
	if m.shape == nil {
		return "Message{}"
	}
	parts := make([]string, 0, len(m.values))
	for i, s := range m.shape.slots {
		if _, isTag := s.Type.(Tag); isTag {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", s.Name, m.values[i]))
	}
	return fmt.Sprintf("%s(%s)", m.shape.name, strings.Join(parts, ", "))
}

// Get returns the value stored in the named slot.
func (m Message) Get(name string) (Value, bool) {
	if m.shape == nil {
		return nil, false
	}
	i, ok := m.shape.index[name]
	if !ok {
		return nil, false
	}
	return m.values[i], true
}

// Byte returns the named raw byte slot, or 0 if absent.
func (m Message) Byte(name string) byte {
	v, _ := m.Get(name)
	b, _ := v.(Byte)
	return byte(b)
}

// Address returns the named address slot, or the zero address if absent.
func (m Message) Address(name string) Address {
	v, _ := m.Get(name)
	a, _ := v.(Address)
	return a
}

// Tag returns the named tag slot, or the zero Tag if absent.
func (m Message) Tag(name string) Tag {
	v, _ := m.Get(name)
	t, _ := v.(Tag)
	return t
}

// Flags returns the named bit field slot, or zero Flags if absent.
func (m Message) Flags(name string) Flags {
	v, _ := m.Get(name)
	f, _ := v.(Flags)
	return f
}

// Message returns the named nested message slot, or the zero Message.
func (m Message) Message(name string) Message {
	v, _ := m.Get(name)
	n, _ := v.(Message)
	return n
}
