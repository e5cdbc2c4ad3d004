// Package modem drives an Insteon PowerLinc Modem over a serial byte channel.
//
// A Session sends host commands built from the plm catalog, reads the
// modem's echo and acknowledgement, and keeps the device registry up to date
// as it discovers devices: the modem itself through GetModemInfo, linked
// devices and groups through the link database walk, and everything else
// from unsolicited messages.
//
// # Framing
//
// The serial line carries no length prefix. Frames are split using the
// per-code length table in plm.FrameLength. A lone Nack byte is the modem's
// "busy" reply and is a complete frame on its own.
//
// # Exchanges
//
// Every command is one exchange: write the command, then read until the
// modem's echo of that command arrives. The echo must repeat the sent bytes
// exactly; anything else is ErrUnexpectedResponse. Frames with a different
// code that arrive while waiting (device broadcasts, button events) are
// applied to the registry and skipped. Exchanges are serialised by the
// session, so the scheduler and bridge commands can share one modem.
//
// Ack and Nack are ordinary outcomes reported as a boolean. Only I/O
// failures and protocol violations are errors.
package modem
