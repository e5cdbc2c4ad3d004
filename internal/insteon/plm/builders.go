package plm

import (
	"fmt"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
)

// Default hop counts for direct messages sent by the host.
const (
	DefaultMaxHops       = 3
	DefaultHopsRemaining = 3
)

// Full brightness, used as cmd2 of an On command.
const FullOn = 0xff

var replies = map[*codec.Composite]*codec.Composite{
	GetModemInfo: ModemInfoResponse,
	Get1stLink:   GetLinkReply,
	GetNextLink:  GetLinkReply,
	SendMessage:  SendMessageReply,
	SendAllLink:  SendAllLinkReply,
	GetIMConfig:  GetIMConfigReply,
	SetIMConfig:  SetIMConfigReply,
}

// ReplyFor returns the echo shape the modem answers a host command with.
func ReplyFor(command *codec.Composite) (*codec.Composite, bool) {
	r, ok := replies[command]
	return r, ok
}

// DirectFlags returns the flags of a standard-length direct message with the
// default hop counts.
func DirectFlags() codec.Flags {
	f := MessageFlags.FromByte(0)
	_ = f.Set("max_hops", DefaultMaxHops)
	_ = f.Set("hops_remaining", DefaultHopsRemaining)
	return f
}

// NewSendMessage builds a standard direct message to a device.
func NewSendMessage(to codec.Address, cmd codec.Tag, cmd2 byte) (codec.Message, error) {
	if cmd.Family() != StandardDirectCommand.Name() {
		return codec.Message{}, fmt.Errorf("%w: %s is not a direct command", codec.ErrArguments, cmd.Name())
	}
	return SendMessage.New(to, DirectFlags(), cmd, codec.Byte(cmd2))
}

// NewSendAllLink builds a broadcast of cmd to an ALL-Link group.
func NewSendAllLink(group byte, cmd codec.Tag, cmd2 byte) (codec.Message, error) {
	if cmd.Family() != StandardDirectCommand.Name() {
		return codec.Message{}, fmt.Errorf("%w: %s is not a direct command", codec.ErrArguments, cmd.Name())
	}
	return SendAllLink.New(codec.Byte(group), cmd, codec.Byte(cmd2))
}

// NewSetIMConfig builds a modem configuration write.
func NewSetIMConfig(flags codec.Flags) (codec.Message, error) {
	return SetIMConfig.New(flags)
}

// ButtonAction is the action nibble of a button event report.
type ButtonAction uint8

// Button actions reported by the modem's SET button.
const (
	ButtonTapped       ButtonAction = 2
	ButtonPressAndHold ButtonAction = 3
	ButtonReleased     ButtonAction = 4
)

func (a ButtonAction) String() string {
	switch a {
	case ButtonTapped:
		return "tapped"
	case ButtonPressAndHold:
		return "press_and_hold"
	case ButtonReleased:
		return "released"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// ButtonEventOf unpacks the event byte of a ButtonEventReport.
func ButtonEventOf(m codec.Message) (button uint8, action ButtonAction) {
	f := m.Flags("event")
	b, _ := f.Get("button")
	a, _ := f.Get("action")
	return b, ButtonAction(a)
}
