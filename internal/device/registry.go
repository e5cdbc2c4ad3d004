package device

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the process-wide store of devices and link groups.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[codec.Address]*Device
	groups  map[byte]*LinkGroup
	now     func() time.Time
	logger  Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[codec.Address]*Device),
		groups:  make(map[byte]*LinkGroup),
		now:     time.Now,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// log returns the current logger.
func (r *Registry) log() Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

// SetClock replaces the time source used for discovery and update
// timestamps.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// AddDevice registers a new device. Registering an address that is already
// present returns ErrDeviceExists and leaves the existing entry untouched.
func (r *Registry) AddDevice(d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[d.Address]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.Address)
	}
	now := r.now()
	if d.DiscoveredAt.IsZero() {
		d.DiscoveredAt = now
	}
	d.UpdatedAt = now
	r.devices[d.Address] = d.DeepCopy()
	r.logger.Info("device registered", "address", d.Address.String())
	return nil
}

// AddGroup registers a new, empty link group. Registering an id that is
// already present returns ErrGroupExists.
func (r *Registry) AddGroup(id byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[id]; ok {
		return fmt.Errorf("%w: %d", ErrGroupExists, id)
	}
	r.groups[id] = &LinkGroup{ID: id}
	r.logger.Info("link group registered", "group", id)
	return nil
}

// Device returns a copy of the device at addr.
func (r *Registry) Device(addr codec.Address) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[addr]
	if !ok {
		return Device{}, false
	}
	return *d.DeepCopy(), true
}

// Group returns a copy of the link group with the given id.
func (r *Registry) Group(id byte) (LinkGroup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[id]
	if !ok {
		return LinkGroup{}, false
	}
	return *g.DeepCopy(), true
}

// Lookup returns the device at addr, registering it first if it is not yet
// known. The boolean reports whether the device was created.
func (r *Registry) Lookup(addr codec.Address) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, created := r.lookupLocked(addr)
	return *d.DeepCopy(), created
}

// UpdateDevice applies fn to the device at addr, registering the device
// first if needed, and returns a copy of the result. fn must not retain
// the pointer.
func (r *Registry) UpdateDevice(addr codec.Address, fn func(*Device)) Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, _ := r.lookupLocked(addr)
	fn(d)
	d.Address = addr
	d.UpdatedAt = r.now()
	return *d.DeepCopy()
}

// Link records that addr is a member of group, registering either side if
// needed. It returns false when the membership already existed.
func (r *Registry) Link(group byte, addr codec.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lookupLocked(addr)
	g, ok := r.groups[group]
	if !ok {
		g = &LinkGroup{ID: group}
		r.groups[group] = g
		r.logger.Info("link group registered", "group", group)
	}
	if g.Has(addr) {
		return false
	}
	g.Members = append(g.Members, addr)
	r.logger.Debug("link recorded", "group", group, "address", addr.String())
	return true
}

// lookupLocked returns the stored device, creating it if absent.
// Callers must hold r.mu for writing.
func (r *Registry) lookupLocked(addr codec.Address) (*Device, bool) {
	if d, ok := r.devices[addr]; ok {
		return d, false
	}
	now := r.now()
	d := &Device{Address: addr, DiscoveredAt: now, UpdatedAt: now}
	r.devices[addr] = d
	r.logger.Info("device discovered", "address", addr.String())
	return d, true
}

// Devices returns copies of all devices ordered by address.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d.DeepCopy())
	}
	sort.Slice(devices, func(i, j int) bool {
		return bytes.Compare(devices[i].Address[:], devices[j].Address[:]) < 0
	})
	return devices
}

// Groups returns copies of all link groups ordered by id.
func (r *Registry) Groups() []LinkGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make([]LinkGroup, 0, len(r.groups))
	for _, g := range r.groups {
		groups = append(groups, *g.DeepCopy())
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

// GroupsOf returns the ids of the groups addr belongs to, ascending.
func (r *Registry) GroupsOf(addr codec.Address) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []byte
	for id, g := range r.groups {
		if g.Has(addr) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Devices: len(r.devices), Groups: len(r.groups)}
	for _, d := range r.devices {
		if d.Identified {
			s.Identified++
		}
	}
	for _, g := range r.groups {
		s.Memberships += len(g.Members)
	}
	return s
}
