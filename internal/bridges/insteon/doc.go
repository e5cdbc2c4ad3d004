// Package insteon bridges an Insteon PowerLinc Modem to Gray Logic over MQTT.
//
// The bridge sits between the MQTT broker and a modem session:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   Gray Logic    │   MQTT   │ Insteon Bridge  │  serial
//	│      Core       │◄────────►│   (this pkg)    │◄────────► PLM
//	└─────────────────┘          └─────────────────┘
//
// Commands arrive on graylogic/command/insteon/{target}, where target is a
// device address ("1a.2b.3c"), an ALL-Link group ("group-5") or "modem".
// Every command is answered on graylogic/ack/insteon/{target}. Device levels
// are published retained on graylogic/state/insteon/{address}, the device
// list on graylogic/discovery/insteon and the scheduler queue on
// graylogic/schedule/insteon.
//
// Polling for unsolicited modem traffic and health reporting do not run on
// their own goroutines. The bridge hands out scheduler events for both, so
// every exchange with the modem is driven either by an MQTT command or by the
// scheduler.
package insteon
