// Package device holds the in-memory Insteon device and link group registry.
//
// The Registry is created once at process start, populated by modem
// discovery (the link database walk) and by command-target lookups, and is
// discarded at exit. Nothing is persisted.
//
// Devices and link groups form a many-to-many association: a LinkGroup lists
// the addresses of its members and neither side owns the other.
//
// # Usage
//
//	reg := device.NewRegistry()
//	reg.SetLogger(logger)
//
//	reg.Link(1, addr)                         // record a group membership
//	reg.UpdateDevice(addr, func(d *device.Device) {
//	    d.Location = "Kitchen"
//	})
//	for _, d := range reg.Devices() { ... }   // sorted copies
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Returned values are
// copies; mutating them does not affect the registry.
package device
