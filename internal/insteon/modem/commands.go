package modem

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
)

// ModemInfo asks the modem for its own identity and records it in the
// registry.
func (s *Session) ModemInfo(ctx context.Context) (device.Device, error) {
	if err := ctx.Err(); err != nil {
		return device.Device{}, err
	}
	if err := s.lock(ctx); err != nil {
		return device.Device{}, err
	}
	defer s.mu.Unlock()

	reply, acked, err := s.exchange(plm.GetModemInfo.MustNew())
	if err != nil {
		return device.Device{}, err
	}
	if !acked {
		return device.Device{}, fmt.Errorf("%w: %s", ErrNacked, plm.GetModemInfo.Name())
	}
	d := s.opts.Registry.UpdateDevice(reply.Address("address"), func(d *device.Device) {
		d.Category = reply.Byte("category")
		d.Subcategory = reply.Byte("subcategory")
		d.Firmware = reply.Byte("firmware")
		d.Identified = true
	})
	s.opts.Logger.Info("modem identified",
		"address", d.Address.String(),
		"category", d.Category,
		"subcategory", d.Subcategory,
		"firmware", d.Firmware,
	)
	return d, nil
}

// linkState is a step of the link database walk.
type linkState int

const (
	linkStart linkState = iota
	linkAwaitingRecord
	linkDone
)

// ReadLinkDB walks the modem's ALL-Link database, recording every group
// membership and device it names. It returns the number of records read.
//
// The walk sends Get1stLink, then one GetNextLink after each record, and
// stops at the first Nack or at a reply that is not a link record.
func (s *Session) ReadLinkDB(ctx context.Context) (int, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	records := 0
	state := linkStart
	for state != linkDone {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		switch state {
		case linkStart:
			_, acked, err := s.exchange(plm.Get1stLink.MustNew())
			if err != nil {
				return records, err
			}
			state = linkDone
			if acked {
				state = linkAwaitingRecord
			}

		case linkAwaitingRecord:
			record, ok, err := s.awaitLinkRecord()
			if err != nil {
				return records, err
			}
			if !ok {
				state = linkDone
				continue
			}
			s.applyLinkRecord(record)
			records++

			_, acked, err := s.exchange(plm.GetNextLink.MustNew())
			if err != nil {
				return records, err
			}
			if !acked {
				state = linkDone
			}
		}
	}
	s.opts.Logger.Info("link database read", "records", records)
	return records, nil
}

// awaitLinkRecord reads the LinkDBRecord that follows an acknowledged link
// request. Other modem messages arriving first are applied and skipped.
func (s *Session) awaitLinkRecord() (codec.Message, bool, error) {
	for skipped := 0; skipped <= maxSkippedFrames; skipped++ {
		frame, err := s.readFrame(s.opts.ResponseTimeout)
		if err != nil {
			return codec.Message{}, false, err
		}
		if frame == nil {
			s.opts.Logger.Warn("link record missing after ack")
			return codec.Message{}, false, nil
		}
		if len(frame) >= 2 && frame[1] != plm.AllLinkRecordRsp.Code() {
			s.applyIncoming(frame)
			continue
		}
		v, _, err := codec.Decode(plm.LinkDBRecord, frame, 0)
		if err != nil {
			s.opts.Logger.Warn("undecodable link record", "bytes", codec.HexDump(frame), "error", err)
			return codec.Message{}, false, nil
		}
		m, _ := v.(codec.Message)
		return m, true, nil
	}
	return codec.Message{}, false, nil
}

// applyLinkRecord records the group membership described by a LinkDBRecord.
func (s *Session) applyLinkRecord(record codec.Message) {
	addr := record.Address("address")
	group := record.Byte("group")
	s.opts.Registry.Link(group, addr)
	s.opts.Logger.Debug("link record",
		"group", group,
		"address", addr.String(),
		"flags", record.Flags("flags").String(),
	)
}

// LoadDevices identifies the modem and then reads its link database.
func (s *Session) LoadDevices(ctx context.Context) error {
	if _, err := s.ModemInfo(ctx); err != nil {
		return fmt.Errorf("reading modem info: %w", err)
	}
	if _, err := s.ReadLinkDB(ctx); err != nil {
		return fmt.Errorf("reading link database: %w", err)
	}
	stats := s.opts.Registry.Stats()
	s.opts.Logger.Info("devices loaded", "devices", stats.Devices, "groups", stats.Groups)
	return nil
}

// Direct sends a standard direct command to one device and reports whether
// the modem acknowledged it. The device is registered if unknown.
//
// An acknowledgement means the modem accepted the command for sending, not
// that the device answered. The registry records the command name either
// way and, for an acknowledged On or Off, the new level.
//
// Parameters:
//   - ctx: Checked before and after waiting for the session
//   - addr: Target device
//   - cmd: Direct command tag from the plm catalog, e.g. plm.OnCmd
//   - cmd2: Second command byte, a level or a group number
//
// Returns:
//   - bool: Whether the modem acknowledged
//   - error: Channel, protocol or context errors; a Nack is not an error
func (s *Session) Direct(ctx context.Context, addr codec.Address, cmd codec.Tag, cmd2 byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	msg, err := plm.NewSendMessage(addr, cmd, cmd2)
	if err != nil {
		return false, err
	}

	if err := s.lock(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	_, acked, err := s.exchange(msg)
	if err != nil {
		return false, err
	}
	s.recordDirect(msg, acked)
	return acked, nil
}

// recordDirect notes a direct command in the registry. An acknowledged On
// or Off also sets the device level.
func (s *Session) recordDirect(msg codec.Message, acked bool) {
	cmd := msg.Tag("command")
	cmd2 := msg.Byte("command2")
	s.opts.Registry.UpdateDevice(msg.Address("to"), func(d *device.Device) {
		d.LastCommand = cmd.Name()
		if !acked {
			return
		}
		switch cmd {
		case plm.OnCmd:
			d.State = levelPtr(cmd2)
		case plm.OffCmd:
			d.State = levelPtr(0)
		}
	})
}

// Ping checks that a device answers.
func (s *Session) Ping(ctx context.Context, addr codec.Address) (bool, error) {
	return s.Direct(ctx, addr, plm.PingCmd, 0)
}

// IDRequest asks a device to broadcast its identity.
func (s *Session) IDRequest(ctx context.Context, addr codec.Address) (bool, error) {
	return s.Direct(ctx, addr, plm.IDRequestCmd, 0)
}

// On turns a device fully on.
func (s *Session) On(ctx context.Context, addr codec.Address) (bool, error) {
	return s.Direct(ctx, addr, plm.OnCmd, plm.FullOn)
}

// Off turns a device off.
func (s *Session) Off(ctx context.Context, addr codec.Address) (bool, error) {
	return s.Direct(ctx, addr, plm.OffCmd, 0)
}

// Beep makes a device beep.
func (s *Session) Beep(ctx context.Context, addr codec.Address) (bool, error) {
	return s.Direct(ctx, addr, plm.BeepCmd, 0)
}

// AssignToGroup puts a device into linking mode for group.
func (s *Session) AssignToGroup(ctx context.Context, addr codec.Address, group byte) (bool, error) {
	return s.Direct(ctx, addr, plm.AssignToGroupCmd, group)
}

// Status asks a device for its current level. When acknowledged, the level
// is taken from the device's reply and recorded in the registry.
//
// After the echo, Status waits for a standard message from the same
// address. Other frames that arrive first are applied as unsolicited
// traffic. A missing reply is ErrNoResponse with acked still true.
func (s *Session) Status(ctx context.Context, addr codec.Address) (bool, uint8, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	msg, err := plm.NewSendMessage(addr, plm.StatusRequestCmd, 0)
	if err != nil {
		return false, 0, err
	}

	if err := s.lock(ctx); err != nil {
		return false, 0, err
	}
	defer s.mu.Unlock()

	_, acked, err := s.exchange(msg)
	if err != nil || !acked {
		return false, 0, err
	}

	for skipped := 0; skipped <= maxSkippedFrames; skipped++ {
		frame, err := s.readFrame(s.opts.ResponseTimeout)
		if err != nil {
			return true, 0, err
		}
		if frame == nil {
			return true, 0, fmt.Errorf("%w: status reply from %s", ErrNoResponse, addr)
		}
		v, _, err := codec.Decode(plm.StandardMessageReceived, frame, 0)
		if err != nil {
			s.applyIncoming(frame)
			continue
		}
		reply, _ := v.(codec.Message)
		if reply.Address("from") != addr {
			s.applyIncoming(frame)
			continue
		}
		level := reply.Byte("command2")
		s.opts.Registry.UpdateDevice(addr, func(d *device.Device) {
			d.LastCommand = plm.StatusRequestCmd.Name()
			d.State = levelPtr(level)
		})
		return true, level, nil
	}
	return true, 0, fmt.Errorf("%w: no status reply from %s", ErrUnexpectedResponse, addr)
}

// GroupOn broadcasts On to an ALL-Link group.
func (s *Session) GroupOn(ctx context.Context, group byte) (bool, error) {
	return s.group(ctx, group, plm.OnCmd)
}

// GroupOff broadcasts Off to an ALL-Link group.
func (s *Session) GroupOff(ctx context.Context, group byte) (bool, error) {
	return s.group(ctx, group, plm.OffCmd)
}

func (s *Session) group(ctx context.Context, group byte, cmd codec.Tag) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	msg, err := plm.NewSendAllLink(group, cmd, 0)
	if err != nil {
		return false, err
	}

	if err := s.lock(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	_, acked, err := s.exchange(msg)
	if err != nil || !acked {
		return false, err
	}
	level := uint8(0)
	if cmd == plm.OnCmd {
		level = plm.FullOn
	}
	if g, ok := s.opts.Registry.Group(group); ok {
		for _, addr := range g.Members {
			s.opts.Registry.UpdateDevice(addr, func(d *device.Device) {
				d.LastCommand = cmd.Name()
				d.State = levelPtr(level)
			})
		}
	}
	return true, nil
}

// GetIMConfig reads the modem configuration flags.
func (s *Session) GetIMConfig(ctx context.Context) (codec.Flags, error) {
	if err := ctx.Err(); err != nil {
		return codec.Flags{}, err
	}
	if err := s.lock(ctx); err != nil {
		return codec.Flags{}, err
	}
	defer s.mu.Unlock()

	reply, acked, err := s.exchange(plm.GetIMConfig.MustNew())
	if err != nil {
		return codec.Flags{}, err
	}
	if !acked {
		return codec.Flags{}, fmt.Errorf("%w: %s", ErrNacked, plm.GetIMConfig.Name())
	}
	return reply.Flags("flags"), nil
}

// SetIMConfig writes the modem configuration flags.
func (s *Session) SetIMConfig(ctx context.Context, flags codec.Flags) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	msg, err := plm.NewSetIMConfig(flags)
	if err != nil {
		return false, err
	}
	if err := s.lock(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	_, acked, err := s.exchange(msg)
	return acked, err
}

// CommandAction bundles a session and a host command into a scheduler
// action. A Nack is logged and treated as success so that recurring events
// survive a busy modem; channel and protocol errors fail the action.
func CommandAction(s *Session, msg codec.Message) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		acked, err := s.Execute(msg)
		if err != nil {
			return fmt.Errorf("executing %s: %w", msg.Shape().Name(), err)
		}
		if !acked {
			s.opts.Logger.Warn("scheduled command not acknowledged", "command", msg.String())
		}
		return nil
	}
}

func levelPtr(v uint8) *uint8 { return &v }
