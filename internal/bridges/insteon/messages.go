package insteon

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/modem"
	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
)

// Protocol is the protocol segment of every bridge topic.
const Protocol = "insteon"

// Command names accepted on the command topic.
const (
	CommandOn          = "on"
	CommandOff         = "off"
	CommandPing        = "ping"
	CommandIDRequest   = "id_request"
	CommandStatus      = "status"
	CommandBeep        = "beep"
	CommandGroupOn     = "group_on"
	CommandGroupOff    = "group_off"
	CommandLoadDevices = "load_devices"
)

// CommandMessage is sent from Core to the bridge.
// Topic: graylogic/command/insteon/{target}
type CommandMessage struct {
	// ID correlates the command with its ack. The bridge generates one
	// when it is empty.
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`

	// Source indicates where the command originated ("api", "automation").
	Source string `json:"source,omitempty"`
}

// AckStatus is the outcome reported in an ack.
type AckStatus string

const (
	// AckAccepted means the modem acknowledged the command.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command could not be executed or was refused.
	AckFailed AckStatus = "failed"

	// AckTimeout means the modem did not answer.
	AckTimeout AckStatus = "timeout"
)

// Error codes for failed commands.
const (
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	ErrCodeInvalidTarget  = "INVALID_TARGET"
	ErrCodeNacked         = "NACKED"
	ErrCodeProtocolError  = "PROTOCOL_ERROR"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeBridgeError    = "BRIDGE_ERROR"
)

// AckMessage reports the result of a command.
// Topic: graylogic/ack/insteon/{target}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Target    string    `json:"target"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`

	// Level is set by status commands.
	Level *uint8 `json:"level,omitempty"`

	Error *AckError `json:"error,omitempty"`
}

// AckError carries failure details.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateMessage is the retained state of one device.
// Topic: graylogic/state/insteon/{address}
type StateMessage struct {
	Address     string    `json:"address"`
	Location    string    `json:"location,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	On          bool      `json:"on"`
	Level       uint8     `json:"level"`
	LastCommand string    `json:"last_command,omitempty"`
	Protocol    string    `json:"protocol"`
}

// DiscoveryMessage lists what the modem knows about.
// Topic: graylogic/discovery/insteon
type DiscoveryMessage struct {
	Timestamp time.Time          `json:"timestamp"`
	Devices   []device.Device    `json:"devices"`
	Groups    []device.LinkGroup `json:"groups"`
}

// ScheduleMessage is a snapshot of the scheduler queue.
// Topic: graylogic/schedule/insteon
type ScheduleMessage struct {
	Timestamp time.Time         `json:"timestamp"`
	Events    []scheduler.Entry `json:"events"`
}

// HealthStatus is the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: graylogic/health/insteon
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Modem         modem.Stats  `json:"modem"`
	Devices       device.Stats `json:"devices"`

	// ScheduledEvents is the scheduler queue length, when known.
	ScheduledEvents int    `json:"scheduled_events"`
	Reason          string `json:"reason,omitempty"`
}

// newAck builds an ack for cmd. The timestamp is UTC.
func newAck(cmd CommandMessage, target string, status AckStatus, now time.Time) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: now.UTC(),
		Command:   cmd.Command,
		Target:    target,
		Status:    status,
		Protocol:  Protocol,
	}
}

// newAckError builds a failed ack with details.
func newAckError(cmd CommandMessage, target string, status AckStatus, code, message string, now time.Time) AckMessage {
	ack := newAck(cmd, target, status, now)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// newState builds the state message for d.
func newState(d device.Device, now time.Time) StateMessage {
	msg := StateMessage{
		Address:     d.Address.String(),
		Location:    d.Location,
		Timestamp:   now.UTC(),
		LastCommand: d.LastCommand,
		Protocol:    Protocol,
	}
	if d.State != nil {
		msg.Level = *d.State
		msg.On = *d.State > 0
	}
	return msg
}

// ensureID gives cmd an ID when Core sent none.
func ensureID(cmd *CommandMessage) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
}
