package insteon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
)

// TargetKind says what a command topic addresses.
type TargetKind int

const (
	// TargetDevice is one device, addressed "xx.xx.xx".
	TargetDevice TargetKind = iota
	// TargetGroup is an ALL-Link group, addressed "group-N".
	TargetGroup
	// TargetModem is the modem itself.
	TargetModem
)

const (
	groupPrefix = "group-"
	modemTarget = "modem"
)

// Target is the parsed last segment of a command topic.
type Target struct {
	Kind    TargetKind
	Address codec.Address
	Group   byte
}

// ParseTarget parses a topic target.
func ParseTarget(s string) (Target, error) {
	switch {
	case s == modemTarget:
		return Target{Kind: TargetModem}, nil
	case strings.HasPrefix(s, groupPrefix):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, groupPrefix), 10, 8)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
		}
		return Target{Kind: TargetGroup, Group: byte(n)}, nil
	default:
		addr, err := codec.ParseAddress(s)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
		}
		return Target{Kind: TargetDevice, Address: addr}, nil
	}
}

// String returns the topic form of the target.
func (t Target) String() string {
	switch t.Kind {
	case TargetGroup:
		return groupPrefix + strconv.Itoa(int(t.Group))
	case TargetModem:
		return modemTarget
	default:
		return t.Address.String()
	}
}
