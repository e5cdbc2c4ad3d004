package modem

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
)

// ProcessIncoming drains whatever the modem has sent unprompted, applies
// each frame to the registry and returns the frames that decoded. It waits
// at most one frame gap for the first byte, so it is cheap to call on a
// schedule.
func (s *Session) ProcessIncoming(ctx context.Context) ([]codec.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	frames, err := s.readBurst(s.opts.FrameGap)
	var msgs []codec.Message
	for _, frame := range frames {
		if m, ok := s.applyIncoming(frame); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs, err
}

// applyIncoming decodes an unsolicited frame and records what it says about
// devices. Frames that do not decode are logged and dropped.
func (s *Session) applyIncoming(frame []byte) (codec.Message, bool) {
	s.unsolicited.Add(1)
	if isBusy(frame) {
		return codec.Message{}, false
	}
	v, _, err := codec.Decode(plm.ModemMessage, frame, 0)
	if err != nil {
		s.opts.Logger.Debug("ignoring undecodable frame", "bytes", codec.HexDump(frame), "error", err)
		return codec.Message{}, false
	}
	m, ok := v.(codec.Message)
	if !ok {
		return codec.Message{}, false
	}

	reg := s.opts.Registry
	switch {
	case m.Is(plm.StandardMessageReceived), m.Is(plm.ExtendedMessageReceived):
		from := m.Address("from")
		cmd1 := m.Byte("command1")
		reg.UpdateDevice(from, func(d *device.Device) {
			d.LastCommand = commandName(cmd1)
			switch cmd1 {
			case plm.OnCmd.Code():
				d.State = levelPtr(plm.FullOn)
			case plm.OffCmd.Code():
				d.State = levelPtr(0)
			}
		})

	case m.Is(plm.AllLinkingCompleted):
		addr := m.Address("address")
		reg.Link(m.Byte("group"), addr)
		reg.UpdateDevice(addr, func(d *device.Device) {
			d.Category = m.Byte("category")
			d.Subcategory = m.Byte("subcategory")
			d.Firmware = m.Byte("firmware")
			d.Identified = true
		})
		s.opts.Logger.Info("all-linking completed", "address", addr.String(), "group", m.Byte("group"))

	case m.Is(plm.LinkDBRecord):
		s.applyLinkRecord(m)

	case m.Is(plm.ButtonEventReport):
		button, action := plm.ButtonEventOf(m)
		s.opts.Logger.Info("modem button event", "button", button, "action", action.String())

	case m.Is(plm.AllLinkCleanupStatus):
		s.opts.Logger.Debug("all-link cleanup", "status", m.Tag("status").Name())

	default:
		s.opts.Logger.Debug("stray modem echo", "message", m.String())
	}
	return m, true
}

// commandName names a cmd1 byte using the direct command catalog.
func commandName(cmd1 byte) string {
	if tag, ok := plm.StandardDirectCommand.Lookup(cmd1); ok {
		return tag.Name()
	}
	return fmt.Sprintf("0x%02x", cmd1)
}
