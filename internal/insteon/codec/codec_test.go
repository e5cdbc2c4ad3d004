package codec

import (
	"bytes"
	"errors"
	"testing"
)

// Test vocabulary, independent of the Insteon catalog.
var (
	testStart = NewTag("Start", "Start", 0x02)
	testAck   = NewTag("Reply", "Ack", 0x06)
	testNack  = NewTag("Reply", "Nack", 0x15)
	testReply = NewFamily("Reply", testAck, testNack)

	testFlags = MustLayout("TestFlags",
		BitField{Name: "low", Width: 2, Offset: 0},
		BitField{Name: "mid", Width: 3, Offset: 2},
		BitField{Name: "high", Width: 3, Offset: 5},
	)

	testPing = MustComposite("Ping",
		Fixed(testStart),
		Fixed(NewTag("Cmd", "PingCmd", 0x0f)),
	)

	testSend = MustComposite("Send",
		Fixed(testStart),
		Fixed(NewTag("Cmd", "SendCmd", 0x62)),
		Field("to", AddressType{}),
		Field("flags", testFlags),
		Field("data", ByteType{}),
	)

	testEcho = MustComposite("Echo",
		Field("command", testPing),
		Field("reply", testReply),
	)
)

func TestEncodeImpliesFixedSlots(t *testing.T) {
	flags, err := testFlags.Make(map[string]uint8{"low": 3, "high": 1})
	if err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	msg, err := testSend.New(Address{0x0f, 0x82, 0x9e}, flags, Byte(0xff))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := []byte{0x02, 0x62, 0x0f, 0x82, 0x9e, 0x23, 0xff}
	if got := Encode(msg); !bytes.Equal(got, want) {
		t.Errorf("Encode() = %s, want %s", HexDump(got), HexDump(want))
	}
}

func TestNewRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args []Value
	}{
		{"too few", []Value{Address{1, 2, 3}}},
		{"wrong type", []Value{Byte(1), testFlags.FromByte(0), Byte(2)}},
		{"nil value", []Value{Address{1, 2, 3}, nil, Byte(2)}},
		{"foreign flags", []Value{Address{1, 2, 3}, MustLayout("Other", BitField{Name: "x", Width: 1}).FromByte(0), Byte(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := testSend.New(tt.args...); !errors.Is(err, ErrArguments) {
				t.Errorf("New() error = %v, want ErrArguments", err)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	send := testSend.MustNew(Address{0xaa, 0xbb, 0xcc}, testFlags.FromByte(0x5a), Byte(0x11))
	echoAck := testEcho.MustNew(testPing.MustNew(), testAck)
	echoNack := testEcho.MustNew(testPing.MustNew(), testNack)

	tests := []struct {
		name  string
		typ   Type
		value Value
	}{
		{"composite", testSend, send},
		{"nested ack", testEcho, echoAck},
		{"nested nack", testEcho, echoNack},
		{"fixed composite", testPing, testPing.MustNew()},
		{"family tag", testReply, testNack},
		{"address", AddressType{}, Address{1, 2, 3}},
		{"flags", testFlags, testFlags.FromByte(0xc3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := Encode(tt.value)

			got, n, err := Decode(tt.typ, wire, 0)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if n != len(wire) {
				t.Errorf("consumed %d bytes, want %d", n, len(wire))
			}
			if !Equal(got, tt.value) {
				t.Errorf("Decode(Encode(v)) = %v, want %v", got, tt.value)
			}
			if again := Encode(got); !bytes.Equal(again, wire) {
				t.Errorf("Encode(Decode(b)) = %s, want %s", HexDump(again), HexDump(wire))
			}
		})
	}
}

func TestDecodeAtOffset(t *testing.T) {
	buf := []byte{0xff, 0xff, 0x02, 0x0f, 0x06}
	v, n, err := Decode(testEcho, buf, 2)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if n != 3 {
		t.Errorf("consumed %d, want 3", n)
	}
	if got := v.(Message).Tag("reply"); got != testAck {
		t.Errorf("reply = %v, want Ack", got)
	}
}

func TestDecodeRejectsOutOfRangeOffset(t *testing.T) {
	buf := []byte{0x02, 0x0f, 0x06}
	types := []Type{ByteType{}, testStart, AddressType{}, testFlags, testEcho, testReply}
	for _, typ := range types {
		for _, offset := range []int{-1, len(buf)} {
			t.Run(typ.Name(), func(t *testing.T) {
				if _, _, err := Decode(typ, buf, offset); !errors.Is(err, ErrNoMatch) {
					t.Errorf("Decode(offset %d) error = %v, want ErrNoMatch", offset, err)
				}
			})
		}
	}
}

func TestDecodeFailureReportsSlotAndOffset(t *testing.T) {
	buf := []byte{0x02, 0x62, 0x01, 0x02}
	_, _, err := Decode(testSend, buf, 0)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("Decode() error = %v, want ErrNoMatch", err)
	}
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error is not a *Failure: %T", err)
	}
	if f.Slot != "to" {
		t.Errorf("Slot = %q, want %q", f.Slot, "to")
	}
	if f.Depth != 2 {
		t.Errorf("Depth = %d, want 2", f.Depth)
	}
	if inner := f.Innermost(); inner.Offset != 2 || inner.Type != "Address" {
		t.Errorf("Innermost = %+v, want Address at offset 2", inner)
	}
}

func TestFamilySelectsDeclaredTag(t *testing.T) {
	for _, tag := range testReply.Tags() {
		t.Run(tag.Name(), func(t *testing.T) {
			v, _, err := Decode(testReply, []byte{tag.Code()}, 0)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if v != Value(tag) {
				t.Errorf("decoded %v, want %v", v, tag)
			}
		})
	}
}

func TestFamilyReportsDeepestFailure(t *testing.T) {
	shared := NewTag("Lead", "Lead", 0xa0)
	first := MustComposite("First",
		Fixed(shared),
		Fixed(NewTag("Kind", "One", 0x01)),
	)
	second := MustComposite("Second",
		Fixed(shared),
		Fixed(NewTag("Kind", "Two", 0x02)),
	)
	other := MustComposite("Other",
		Fixed(NewTag("Lead", "OtherLead", 0xb0)),
		Field("x", ByteType{}),
	)

	tests := []struct {
		name   string
		family *Family
	}{
		{"shallow first", NewFamily("F", other, first, second)},
		{"shallow last", NewFamily("F", first, second, other)},
		{"shallow middle", NewFamily("F", second, other, first)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.family, []byte{0xa0, 0x7f}, 0)
			var f *Failure
			if !errors.As(err, &f) {
				t.Fatalf("Decode() error = %v, want *Failure", err)
			}
			if f.Depth != 1 {
				t.Errorf("Depth = %d, want 1", f.Depth)
			}
			if f.Cause == nil || f.Cause.Type == "Other" {
				t.Fatalf("reported alternative %+v, want one that consumed the lead byte", f.Cause)
			}
			if f.Cause.Slot == "Lead" {
				t.Errorf("failure points at the lead slot, want the diverging slot")
			}
		})
	}
}

func TestFamilyTieGoesToFirstDeclared(t *testing.T) {
	a := MustComposite("A", Fixed(NewTag("K", "A0", 0x01)), Field("x", ByteType{}))
	b := MustComposite("B", Fixed(NewTag("K", "B0", 0x01)), Field("x", ByteType{}))
	_, _, err := Decode(NewFamily("F", a, b), []byte{0x01}, 0)
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Decode() error = %v", err)
	}
	if f.Cause.Type != "A" {
		t.Errorf("reported %q, want first declared %q", f.Cause.Type, "A")
	}
}

func TestNestedFamilyDispatch(t *testing.T) {
	inner := NewFamily("Inner", testAck, testNack)
	outer := NewFamily("Outer", testPing, inner)

	v, n, err := Decode(outer, []byte{0x15}, 0)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if n != 1 || v != Value(testNack) {
		t.Errorf("Decode() = %v, %d; want Nack, 1", v, n)
	}
	if !outer.Accepts(testAck) {
		t.Error("outer family should accept a nested family's tag")
	}
	if tag, ok := outer.Lookup(0x06); !ok || tag != testAck {
		t.Errorf("Lookup(0x06) = %v, %v", tag, ok)
	}
}

func TestDecodeAll(t *testing.T) {
	buf := []byte{0x02, 0x0f, 0x06, 0x02, 0x0f, 0x15, 0x02}
	values, err := DecodeAll(testEcho, buf)
	if len(values) != 2 {
		t.Fatalf("decoded %d values, want 2", len(values))
	}
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("trailing error = %v, want *Failure", err)
	}
	if f.Offset != 6 {
		t.Errorf("failure offset = %d, want 6", f.Offset)
	}
}

func TestBitFieldIndependence(t *testing.T) {
	layout := MustLayout("Pair",
		BitField{Name: "a", Width: 3, Offset: 1},
		BitField{Name: "b", Width: 2, Offset: 5},
	)

	var ab, ba Flags
	ab = layout.FromByte(0)
	ba = layout.FromByte(0)
	mustSet(t, &ab, "a", 5)
	mustSet(t, &ab, "b", 2)
	mustSet(t, &ba, "b", 2)
	mustSet(t, &ba, "a", 5)

	if ab.Byte() != ba.Byte() {
		t.Errorf("set order changed packing: %#02x vs %#02x", ab.Byte(), ba.Byte())
	}
	if want := byte(5<<1 | 2<<5); ab.Byte() != want {
		t.Errorf("Byte() = %#02x, want %#02x", ab.Byte(), want)
	}
	for _, f := range []Flags{ab, ba} {
		if v, _ := f.Get("a"); v != 5 {
			t.Errorf("a = %d, want 5", v)
		}
		if v, _ := f.Get("b"); v != 2 {
			t.Errorf("b = %d, want 2", v)
		}
	}
}

func TestBitFieldSetPreservesOtherBits(t *testing.T) {
	f := testFlags.FromByte(0xff)
	mustSet(t, &f, "mid", 0)
	if f.Byte() != 0xe3 {
		t.Errorf("Byte() = %#02x, want 0xe3", f.Byte())
	}
}

func TestBitFieldErrors(t *testing.T) {
	f := testFlags.FromByte(0)
	if err := f.Set("low", 4); !errors.Is(err, ErrFieldOverflow) {
		t.Errorf("Set overflow error = %v", err)
	}
	if _, err := f.Get("nope"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Get unknown error = %v", err)
	}

	layouts := []struct {
		name   string
		fields []BitField
	}{
		{"overlap", []BitField{{Name: "a", Width: 4}, {Name: "b", Width: 2, Offset: 3}}},
		{"too wide", []BitField{{Name: "a", Width: 4, Offset: 5}}},
		{"zero width", []BitField{{Name: "a"}}},
		{"duplicate", []BitField{{Name: "a", Width: 1}, {Name: "a", Width: 1, Offset: 1}}},
	}
	for _, tt := range layouts {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLayout("L", tt.fields...); !errors.Is(err, ErrInvalidLayout) {
				t.Errorf("NewLayout() error = %v, want ErrInvalidLayout", err)
			}
		})
	}
}

func TestFullWidthField(t *testing.T) {
	l := MustLayout("Whole", BitField{Name: "all", Width: 8})
	f := l.FromByte(0)
	mustSet(t, &f, "all", 0xab)
	if f.Byte() != 0xab {
		t.Errorf("Byte() = %#02x, want 0xab", f.Byte())
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    Address
		wantErr bool
	}{
		{"0f.82.9e", Address{0x0f, 0x82, 0x9e}, false},
		{"AA.bb.0C", Address{0xaa, 0xbb, 0x0c}, false},
		{" 1.2.3 ", Address{1, 2, 3}, false},
		{"0f.82", Address{}, true},
		{"0f.82.9g", Address{}, true},
		{"0f.82.123", Address{}, true},
		{"", Address{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseAddress() = %v, want %v", got, tt.want)
			}
		})
	}
	if s := (Address{0x0f, 0x82, 0x9e}).String(); s != "0f.82.9e" {
		t.Errorf("String() = %q", s)
	}
}

func TestHexDump(t *testing.T) {
	if got := HexDump([]byte{0x02, 0x62, 0xAB}); got != "02 62 ab" {
		t.Errorf("HexDump() = %q", got)
	}
	if got := HexDump(nil); got != "" {
		t.Errorf("HexDump(nil) = %q", got)
	}
}

func TestDuplicateSlotRejected(t *testing.T) {
	_, err := NewComposite("Dup", Field("x", ByteType{}), Field("x", ByteType{}))
	if !errors.Is(err, ErrInvalidShape) {
		t.Errorf("NewComposite() error = %v, want ErrInvalidShape", err)
	}
}

func mustSet(t *testing.T, f *Flags, name string, v uint8) {
	t.Helper()
	if err := f.Set(name, v); err != nil {
		t.Fatalf("Set(%q, %d) error = %v", name, v, err)
	}
}
