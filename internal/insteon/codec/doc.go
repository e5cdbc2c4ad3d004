// Package codec implements a declarative binary codec for Insteon wire messages.
//
// Messages are described as data rather than hand-written parse code. A
// message shape is a Composite: an ordered list of named slots, each holding
// a field Type. The framework knows how to encode and decode any shape built
// from these types, so adding a new message means adding a slot list.
//
// # Field Types
//
//   - ByteType: one raw byte (category, group, command2, ...)
//   - Tag: a fixed byte bound to a family (Ack=0x06, Nack=0x15)
//   - AddressType: a 3-byte Insteon device address
//   - *Layout: a byte split into named bit fields (message flags)
//   - *Composite: a nested message shape
//   - *Family: an ordered set of alternative shapes sharing one decoder
//
// # Decoding
//
// Decode never panics on malformed input. Every field type returns either a
// value with the number of bytes consumed, or a *Failure describing which
// type and slot failed and at what offset. A Family tries its alternatives in
// declaration order and returns the first success; when all of them fail it
// reports the failure that got furthest into the buffer.
//
//	v, n, err := codec.Decode(plm.ModemMessage, frame, 0)
//	if err != nil {
//	    var f *codec.Failure
//	    errors.As(err, &f)
//	    log.Printf("undecodable at offset %d: %v", f.Offset, f)
//	}
//
// # Thread Safety
//
// Types are built once at package initialisation and are read-only after
// that. Encode and Decode are pure and safe for concurrent use.
package codec
