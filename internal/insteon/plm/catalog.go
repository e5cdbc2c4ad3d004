package plm

import (
	"strconv"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
)

// StartByte begins every frame on the serial line.
var StartByte = codec.NewTag("Start", "StartByte", 0x02)

// Acknowledgement bytes. A modem echo always ends in one of these, and a bare
// Nack is sent when the modem is busy.
var (
	Ack  = codec.NewTag("AckNack", "Ack", 0x06)
	Nack = codec.NewTag("AckNack", "Nack", 0x15)

	AckNack = codec.NewFamily("AckNack", Ack, Nack)
)

// Message origin markers.
var (
	OriginModem = codec.NewTag("MessageOrigin", "OriginModem", 0x50)
	OriginHost  = codec.NewTag("MessageOrigin", "OriginHost", 0x60)

	MessageOrigin = codec.NewFamily("MessageOrigin", OriginModem, OriginHost)
)

// Modem command codes, sent by the host after StartByte.
var (
	GetModemInfoCmd = codec.NewTag("CommandCode", "GetModemInfo", 0x60)
	SendAllLinkCmd  = codec.NewTag("CommandCode", "SendAllLink", 0x61)
	SendMessageCmd  = codec.NewTag("CommandCode", "SendMessage", 0x62)
	Get1stLinkCmd   = codec.NewTag("CommandCode", "Get1stLink", 0x69)
	GetNextLinkCmd  = codec.NewTag("CommandCode", "GetNextLink", 0x6a)
	SetIMConfigCmd  = codec.NewTag("CommandCode", "SetIMConfig", 0x6b)
	GetIMConfigCmd  = codec.NewTag("CommandCode", "GetIMConfig", 0x73)

	CommandCode = codec.NewFamily("CommandCode",
		GetModemInfoCmd, SendAllLinkCmd, SendMessageCmd,
		Get1stLinkCmd, GetNextLinkCmd, SetIMConfigCmd, GetIMConfigCmd,
	)
)

// Response codes for messages the modem originates.
var (
	StandardMessageReceivedRsp = codec.NewTag("ResponseCode", "StandardMessageReceived", 0x50)
	ExtendedMessageReceivedRsp = codec.NewTag("ResponseCode", "ExtendedMessageReceived", 0x51)
	AllLinkingCompletedRsp     = codec.NewTag("ResponseCode", "AllLinkingCompleted", 0x53)
	ButtonEventReportRsp       = codec.NewTag("ResponseCode", "ButtonEventReport", 0x54)
	AllLinkRecordRsp           = codec.NewTag("ResponseCode", "AllLinkRecord", 0x57)
	AllLinkCleanupStatusRsp    = codec.NewTag("ResponseCode", "AllLinkCleanupStatus", 0x58)

	ResponseCode = codec.NewFamily("ResponseCode",
		StandardMessageReceivedRsp, ExtendedMessageReceivedRsp, AllLinkingCompletedRsp,
		ButtonEventReportRsp, AllLinkRecordRsp, AllLinkCleanupStatusRsp,
	)
)

// Standard direct commands (cmd1 of a device message).
var (
	AssignToGroupCmd = codec.NewTag("StandardDirectCommand", "AssignToGroup", 0x01)
	PingCmd          = codec.NewTag("StandardDirectCommand", "Ping", 0x0f)
	IDRequestCmd     = codec.NewTag("StandardDirectCommand", "IDRequest", 0x10)
	OnCmd            = codec.NewTag("StandardDirectCommand", "On", 0x11)
	OffCmd           = codec.NewTag("StandardDirectCommand", "Off", 0x13)
	StatusRequestCmd = codec.NewTag("StandardDirectCommand", "StatusRequest", 0x19)
	BeepCmd          = codec.NewTag("StandardDirectCommand", "Beep", 0x30)

	StandardDirectCommand = codec.NewFamily("StandardDirectCommand",
		AssignToGroupCmd, PingCmd, IDRequestCmd, OnCmd, OffCmd, StatusRequestCmd, BeepCmd,
	)
)

// Bit field layouts.
var (
	// MessageFlags is the flags byte of every device message.
	MessageFlags = codec.MustLayout("MessageFlags",
		codec.BitField{Name: "max_hops", Width: 2, Offset: 0},
		codec.BitField{Name: "hops_remaining", Width: 2, Offset: 2},
		codec.BitField{Name: "extended", Width: 1, Offset: 4},
		codec.BitField{Name: "acknowledge", Width: 1, Offset: 5},
		codec.BitField{Name: "group", Width: 1, Offset: 6},
		codec.BitField{Name: "broadcast_nack", Width: 1, Offset: 7},
	)

	// LinkRecordFlags describes one ALL-Link database record.
	LinkRecordFlags = codec.MustLayout("LinkRecordFlags",
		codec.BitField{Name: "used_before", Width: 1, Offset: 1},
		codec.BitField{Name: "product", Width: 4, Offset: 2},
		codec.BitField{Name: "controller", Width: 1, Offset: 6},
		codec.BitField{Name: "in_use", Width: 1, Offset: 7},
	)

	// IMConfigFlags is the modem configuration byte.
	IMConfigFlags = codec.MustLayout("IMConfigFlags",
		codec.BitField{Name: "deadman_disabled", Width: 1, Offset: 4},
		codec.BitField{Name: "auto_led_disabled", Width: 1, Offset: 5},
		codec.BitField{Name: "monitor_mode", Width: 1, Offset: 6},
		codec.BitField{Name: "auto_link_disabled", Width: 1, Offset: 7},
	)

	// ButtonEvent packs the button number and action of a button event report.
	ButtonEvent = codec.MustLayout("ButtonEvent",
		codec.BitField{Name: "action", Width: 4, Offset: 0},
		codec.BitField{Name: "button", Width: 4, Offset: 4},
	)
)

// Shapes sent by the host.
var (
	GetModemInfo = codec.MustComposite("GetModemInfo",
		codec.Fixed(StartByte),
		codec.Fixed(GetModemInfoCmd),
	)

	Get1stLink = codec.MustComposite("Get1stLinkCommand",
		codec.Fixed(StartByte),
		codec.Fixed(Get1stLinkCmd),
	)

	GetNextLink = codec.MustComposite("GetNextLinkCommand",
		codec.Fixed(StartByte),
		codec.Fixed(GetNextLinkCmd),
	)

	// GetLinkCommand is either link database read request.
	GetLinkCommand = codec.NewFamily("GetLinkCommand", Get1stLink, GetNextLink)

	SendMessage = codec.MustComposite("SendMessageCommand",
		codec.Fixed(StartByte),
		codec.Fixed(SendMessageCmd),
		codec.Field("to", codec.AddressType{}),
		codec.Field("flags", MessageFlags),
		codec.Field("command", StandardDirectCommand),
		codec.Field("command2", codec.ByteType{}),
	)

	SendAllLink = codec.MustComposite("SendAllLinkCommand",
		codec.Fixed(StartByte),
		codec.Fixed(SendAllLinkCmd),
		codec.Field("group", codec.ByteType{}),
		codec.Field("command", StandardDirectCommand),
		codec.Field("command2", codec.ByteType{}),
	)

	GetIMConfig = codec.MustComposite("GetIMConfig",
		codec.Fixed(StartByte),
		codec.Fixed(GetIMConfigCmd),
	)

	SetIMConfig = codec.MustComposite("SetIMConfig",
		codec.Fixed(StartByte),
		codec.Fixed(SetIMConfigCmd),
		codec.Field("flags", IMConfigFlags),
	)
)

// Modem echo replies: the command as sent, followed by Ack or Nack.
var (
	ModemInfoResponse = codec.MustComposite("ModemInfoResponse",
		codec.Field("command", GetModemInfo),
		codec.Field("address", codec.AddressType{}),
		codec.Field("category", codec.ByteType{}),
		codec.Field("subcategory", codec.ByteType{}),
		codec.Field("firmware", codec.ByteType{}),
		codec.Field("ack", AckNack),
	)

	GetLinkReply = codec.MustComposite("GetLinkReply",
		codec.Field("command", GetLinkCommand),
		codec.Field("ack", AckNack),
	)

	SendMessageReply = codec.MustComposite("SendMessageReply",
		codec.Field("command", SendMessage),
		codec.Field("ack", AckNack),
	)

	SendAllLinkReply = codec.MustComposite("SendAllLinkReply",
		codec.Field("command", SendAllLink),
		codec.Field("ack", AckNack),
	)

	GetIMConfigReply = codec.MustComposite("GetIMConfigReply",
		codec.Field("command", GetIMConfig),
		codec.Field("flags", IMConfigFlags),
		codec.Field("spare1", codec.ByteType{}),
		codec.Field("spare2", codec.ByteType{}),
		codec.Field("ack", AckNack),
	)

	SetIMConfigReply = codec.MustComposite("SetIMConfigReply",
		codec.Field("command", SetIMConfig),
		codec.Field("ack", AckNack),
	)
)

// Messages the modem originates.
var (
	StandardMessageReceived = codec.MustComposite("StandardMessageReceived",
		codec.Fixed(StartByte),
		codec.Fixed(StandardMessageReceivedRsp),
		codec.Field("from", codec.AddressType{}),
		codec.Field("to", codec.AddressType{}),
		codec.Field("flags", MessageFlags),
		codec.Field("command1", codec.ByteType{}),
		codec.Field("command2", codec.ByteType{}),
	)

	ExtendedMessageReceived = codec.MustComposite("ExtendedMessageReceived",
		append([]codec.Slot{
			codec.Fixed(StartByte),
			codec.Fixed(ExtendedMessageReceivedRsp),
			codec.Field("from", codec.AddressType{}),
			codec.Field("to", codec.AddressType{}),
			codec.Field("flags", MessageFlags),
			codec.Field("command1", codec.ByteType{}),
			codec.Field("command2", codec.ByteType{}),
		}, userDataSlots()...)...,
	)

	LinkDBRecord = codec.MustComposite("LinkDBRecord",
		codec.Fixed(StartByte),
		codec.Fixed(AllLinkRecordRsp),
		codec.Field("flags", LinkRecordFlags),
		codec.Field("group", codec.ByteType{}),
		codec.Field("address", codec.AddressType{}),
		codec.Field("data1", codec.ByteType{}),
		codec.Field("data2", codec.ByteType{}),
		codec.Field("data3", codec.ByteType{}),
	)

	AllLinkingCompleted = codec.MustComposite("AllLinkingCompleted",
		codec.Fixed(StartByte),
		codec.Fixed(AllLinkingCompletedRsp),
		codec.Field("link_code", codec.ByteType{}),
		codec.Field("group", codec.ByteType{}),
		codec.Field("address", codec.AddressType{}),
		codec.Field("category", codec.ByteType{}),
		codec.Field("subcategory", codec.ByteType{}),
		codec.Field("firmware", codec.ByteType{}),
	)

	ButtonEventReport = codec.MustComposite("ButtonEventReport",
		codec.Fixed(StartByte),
		codec.Fixed(ButtonEventReportRsp),
		codec.Field("event", ButtonEvent),
	)

	AllLinkCleanupStatus = codec.MustComposite("AllLinkCleanupStatus",
		codec.Fixed(StartByte),
		codec.Fixed(AllLinkCleanupStatusRsp),
		codec.Field("status", AckNack),
	)
)

// Dispatch families used to interpret captured traffic.
var (
	// HostCommand is everything the host writes to the modem.
	HostCommand = codec.NewFamily("HostCommand",
		GetModemInfo, GetLinkCommand, SendMessage, SendAllLink, GetIMConfig, SetIMConfig,
	)

	// ModemMessage is everything the modem writes to the host. The bare Nack
	// comes last: it is what a busy modem sends instead of an echo.
	ModemMessage = codec.NewFamily("ModemMessage",
		ModemInfoResponse, GetLinkReply, SendMessageReply, SendAllLinkReply,
		GetIMConfigReply, SetIMConfigReply,
		StandardMessageReceived, ExtendedMessageReceived, LinkDBRecord,
		AllLinkingCompleted, ButtonEventReport, AllLinkCleanupStatus,
		Nack,
	)
)

// userDataLen is the number of user data bytes in an extended message.
const userDataLen = 14

func userDataSlots() []codec.Slot {
	slots := make([]codec.Slot, userDataLen)
	for i := range slots {
		slots[i] = codec.Field(userDataName(i), codec.ByteType{})
	}
	return slots
}

// userDataName returns the slot name of extended user data byte i (d1..d14).
func userDataName(i int) string {
	return "d" + strconv.Itoa(i+1)
}
