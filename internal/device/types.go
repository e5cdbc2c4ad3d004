package device

import (
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
)

// Device is one Insteon device known to the modem.
type Device struct {
	// Address is the device's unique 3-byte Insteon address.
	Address codec.Address `json:"address"`

	// Category, Subcategory and Firmware identify the product. They are
	// only meaningful when Identified is true.
	Category    byte `json:"category"`
	Subcategory byte `json:"subcategory"`
	Firmware    byte `json:"firmware"`
	Identified  bool `json:"identified"`

	// Location is the user-assigned description from the device file.
	Location string `json:"location,omitempty"`

	// LastCommand is the name of the last direct command sent to or
	// received from the device.
	LastCommand string `json:"last_command,omitempty"`

	// State is the last reported level (0 off, 255 fully on), nil until
	// the device has reported.
	State *uint8 `json:"state,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DeepCopy returns a copy of d that shares no memory with it.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	c := *d
	if d.State != nil {
		s := *d.State
		c.State = &s
	}
	return &c
}

// Name returns the location when known, otherwise the address.
func (d Device) Name() string {
	if d.Location != "" {
		return d.Location
	}
	return d.Address.String()
}

// LinkGroup is an ALL-Link group: one group id and the addresses of its
// member devices, in the order they were linked.
type LinkGroup struct {
	ID      byte            `json:"id"`
	Members []codec.Address `json:"members"`
}

// DeepCopy returns a copy of g that shares no memory with it.
func (g *LinkGroup) DeepCopy() *LinkGroup {
	if g == nil {
		return nil
	}
	return &LinkGroup{ID: g.ID, Members: append([]codec.Address(nil), g.Members...)}
}

// Has reports whether addr is a member of the group.
func (g LinkGroup) Has(addr codec.Address) bool {
	for _, m := range g.Members {
		if m == addr {
			return true
		}
	}
	return false
}

// Stats summarises the registry for health reporting.
type Stats struct {
	Devices     int `json:"devices"`
	Identified  int `json:"identified"`
	Groups      int `json:"groups"`
	Memberships int `json:"memberships"`
}
