package modem

import "time"

// Direction says which way a frame travelled.
type Direction int

// Traffic directions.
const (
	CommandSent      Direction = iota + 1 // host -> modem
	ResponseReceived                      // modem -> host
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case CommandSent:
		return "command_sent"
	case ResponseReceived:
		return "response_received"
	default:
		return "unknown"
	}
}

// Abbrev returns the one-letter form used in traffic logs: "H" for bytes
// the host wrote, "m" for bytes the modem sent.
func (d Direction) Abbrev() string {
	switch d {
	case CommandSent:
		return "H"
	case ResponseReceived:
		return "m"
	default:
		return "?"
	}
}

// TrafficEvent is one frame written to or read from the modem.
type TrafficEvent struct {
	Direction Direction
	Sender    string
	Timestamp time.Time
	Bytes     []byte
}

// TrafficObserver receives every frame a session writes or reads.
//
// ObserveTraffic is called synchronously while the session holds its
// exchange lock, so implementations must not block. Bytes is owned by the
// observer.
type TrafficObserver interface {
	ObserveTraffic(ev TrafficEvent)
}

// TrafficObserverFunc adapts a function to TrafficObserver.
type TrafficObserverFunc func(ev TrafficEvent)

// ObserveTraffic implements TrafficObserver.
func (f TrafficObserverFunc) ObserveTraffic(ev TrafficEvent) { f(ev) }

type noopObserver struct{}

func (noopObserver) ObserveTraffic(TrafficEvent) {}
