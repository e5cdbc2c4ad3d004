// Package plm declares the Insteon PowerLinc Modem message catalog: the tags,
// bit field layouts and message shapes exchanged over the modem's serial
// line, plus framing helpers for splitting a byte stream into frames.
//
// Every declaration is built from the codec package's combinators, so any
// shape here can be constructed with New and decoded with codec.Decode.
package plm
