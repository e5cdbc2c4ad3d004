package insteon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/modem"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
)

const (
	// commandTopicParts is the segment count of graylogic/command/insteon/{target}.
	commandTopicParts = 4

	// commandTimeout bounds one command, including link database walks.
	commandTimeout = 30 * time.Second

	// Defaults for the scheduler events.
	defaultPollInterval   = time.Second
	defaultHealthInterval = 30 * time.Second
)

// MQTTClient is the subset of the MQTT client the bridge uses.
//
// It is satisfied by *mqtt.Client. Tests substitute a recording fake.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Modem is the subset of a modem session the bridge drives. It is
// satisfied by *modem.Session.
//
// The bool results report whether the modem acknowledged the command. A
// Nack is a normal outcome and comes back as false with a nil error; the
// error is reserved for timeouts, echo mismatches and channel failures.
type Modem interface {
	On(ctx context.Context, addr codec.Address) (bool, error)
	Off(ctx context.Context, addr codec.Address) (bool, error)
	Ping(ctx context.Context, addr codec.Address) (bool, error)
	IDRequest(ctx context.Context, addr codec.Address) (bool, error)
	Beep(ctx context.Context, addr codec.Address) (bool, error)
	Status(ctx context.Context, addr codec.Address) (bool, uint8, error)
	GroupOn(ctx context.Context, group byte) (bool, error)
	GroupOff(ctx context.Context, group byte) (bool, error)
	LoadDevices(ctx context.Context) error
	ProcessIncoming(ctx context.Context) ([]codec.Message, error)
	Stats() modem.Stats
	Registry() *device.Registry
}

// Schedule is the view of the scheduler published by the bridge. It is
// satisfied by *scheduler.Scheduler.
type Schedule interface {
	Snapshot() []scheduler.Entry
	Len() int
}

// Logger is the structured logger used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds what a bridge needs.
//
// MQTT and Modem are required. The remaining fields fall back to
// defaults: a silent logger, one-second polling, thirty-second health
// reports and the system clock.
type Options struct {
	// MQTT carries commands in and state, acks and health out.
	MQTT MQTTClient

	// Modem is the session commands are executed against.
	Modem Modem

	// Schedule is optional. Without it no schedule snapshots are published.
	Schedule Schedule

	Logger Logger

	// Version is reported in health messages.
	Version string

	// PollInterval is the cadence of PollEvent.
	PollInterval time.Duration

	// HealthInterval is the cadence of HealthEvent.
	HealthInterval time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Bridge translates MQTT commands into modem exchanges and publishes what
// the modem learns.
//
// Commands arrive on graylogic/command/insteon/{target}, where target is a
// device address, group-N or modem. Each one is executed against the modem
// session under a bounded context and answered with exactly one ack. Device
// state is published retained and only when it changed since the last
// publication, whether the change came from a command, a status reply or
// unsolicited traffic picked up by Poll.
//
// The bridge does not own a goroutine. Its recurring work, polling and
// health, is handed to the scheduler as events from PollEvent and
// HealthEvent.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	mqtt     MQTTClient
	modem    Modem
	schedule Schedule
	logger   Logger
	version  string
	now      func() time.Time

	pollInterval   time.Duration
	healthInterval time.Duration
	started        time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// Last published state per device, for change detection.
	stateMu    sync.Mutex
	stateCache map[codec.Address]StateMessage

	healthMu  sync.Mutex
	lastModem modem.Stats
	commands  atomic.Uint64
	failures  atomic.Uint64
	stopOnce  sync.Once
	topics    mqtt.Topics
}

// New creates a bridge. Call Start to subscribe.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, errors.New("MQTT client is required")
	}
	if opts.Modem == nil {
		return nil, errors.New("modem is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = defaultHealthInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		mqtt:           opts.MQTT,
		modem:          opts.Modem,
		schedule:       opts.Schedule,
		logger:         opts.Logger,
		version:        opts.Version,
		now:            opts.Clock,
		pollInterval:   opts.PollInterval,
		healthInterval: opts.HealthInterval,
		started:        opts.Clock(),
		ctx:            ctx,
		cancel:         cancel,
		stateCache:     make(map[codec.Address]StateMessage),
	}, nil
}

// Start announces the bridge, subscribes to commands and publishes the
// current device list.
func (b *Bridge) Start(_ context.Context) error {
	if err := b.publishHealth(HealthStarting, ""); err != nil {
		b.logger.Warn("failed to publish starting status", "error", err)
	}

	topic := b.topics.AllBridgeCommands(Protocol)
	if err := b.mqtt.Subscribe(topic, 1, b.handleMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	if err := b.publishDiscovery(); err != nil {
		b.logger.Warn("failed to publish discovery", "error", err)
	}
	if err := b.publishHealth(HealthHealthy, ""); err != nil {
		b.logger.Warn("failed to publish healthy status", "error", err)
	}
	b.logger.Info("bridge started", "devices", b.modem.Registry().Stats().Devices)
	return nil
}

// Stop aborts in-flight commands and publishes a final stopping status.
// Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.cancel()
		//nolint:errcheck // shutting down, nothing to do if it fails
		b.publishHealth(HealthStopping, "")
		b.logger.Info("bridge stopped")
	})
}

// PollEvent returns a recurring scheduler event that drains unsolicited
// modem traffic and publishes the resulting device state.
//
// The event catches up after a late run, for example when a command held
// the session past the poll time, rather than being dropped.
func (b *Bridge) PollEvent() *scheduler.Event {
	return scheduler.NewEvent(b.Poll, scheduler.EveryAfter(b.pollInterval), "poll insteon modem")
}

// HealthEvent returns a recurring scheduler event that publishes health and
// the schedule snapshot.
func (b *Bridge) HealthEvent() *scheduler.Event {
	return scheduler.NewEvent(b.ReportHealth, scheduler.EveryAfter(b.healthInterval), "insteon bridge health")
}

// Poll reads unsolicited frames and publishes what changed. Only a failed
// or closed channel is an error; protocol glitches are logged so the poll
// event keeps recurring.
func (b *Bridge) Poll(ctx context.Context) error {
	msgs, err := b.modem.ProcessIncoming(ctx)
	if err != nil {
		if errors.Is(err, modem.ErrReadFailed) || errors.Is(err, modem.ErrClosed) {
			return err
		}
		b.logger.Warn("polling modem", "error", err)
	}

	reg := b.modem.Registry()
	discovery := false
	for _, m := range msgs {
		var addr codec.Address
		switch {
		case m.Is(plm.StandardMessageReceived), m.Is(plm.ExtendedMessageReceived):
			addr = m.Address("from")
		case m.Is(plm.AllLinkingCompleted):
			addr = m.Address("address")
			discovery = true
		default:
			continue
		}
		if d, ok := reg.Device(addr); ok {
			b.publishState(d)
		}
	}
	if discovery {
		if err := b.publishDiscovery(); err != nil {
			b.logger.Warn("failed to publish discovery", "error", err)
		}
	}
	return nil
}

// handleMessage routes a message from the command subscription.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != commandTopicParts || parts[1] != "command" || parts[2] != Protocol {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parsing command on %s: %w", topic, err)
	}
	b.publishAck(b.Execute(b.ctx, cmd, parts[3]))
	return nil
}

// Execute runs one command against a raw target ("modem", "group-N" or a
// device address) and returns the acknowledgement. State changes it causes
// are published; the ack itself is left to the caller.
//
// The MQTT handler publishes the ack on the ack topic; the HTTP API writes
// it as the response body. A missing command ID is generated so the ack can
// always be correlated. ctx is bounded further by the command timeout.
func (b *Bridge) Execute(ctx context.Context, cmd CommandMessage, rawTarget string) AckMessage {
	ensureID(&cmd)
	b.commands.Add(1)

	b.logger.Info("received command",
		"command_id", cmd.ID,
		"target", rawTarget,
		"command", cmd.Command,
		"source", cmd.Source)

	target, err := ParseTarget(rawTarget)
	if err != nil {
		b.failures.Add(1)
		return newAckError(cmd, rawTarget, AckFailed, ErrCodeInvalidTarget, err.Error(), b.now())
	}
	return b.execute(ctx, cmd, target)
}

func (b *Bridge) execute(ctx context.Context, cmd CommandMessage, target Target) AckMessage {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var (
		acked bool
		level *uint8
		err   error
	)
	switch cmd.Command {
	case CommandOn, CommandOff, CommandPing, CommandIDRequest, CommandBeep:
		if target.Kind != TargetDevice {
			return b.invalid(cmd, target)
		}
		acked, err = b.direct(ctx, cmd.Command, target.Address)

	case CommandStatus:
		if target.Kind != TargetDevice {
			return b.invalid(cmd, target)
		}
		var l uint8
		acked, l, err = b.modem.Status(ctx, target.Address)
		if acked && err == nil {
			level = &l
		}

	case CommandGroupOn, CommandGroupOff:
		if target.Kind != TargetGroup {
			return b.invalid(cmd, target)
		}
		if cmd.Command == CommandGroupOn {
			acked, err = b.modem.GroupOn(ctx, target.Group)
		} else {
			acked, err = b.modem.GroupOff(ctx, target.Group)
		}

	case CommandLoadDevices:
		if target.Kind != TargetModem {
			return b.invalid(cmd, target)
		}
		err = b.modem.LoadDevices(ctx)
		acked = err == nil

	default:
		return b.invalid(cmd, target)
	}

	ack := b.ackFor(cmd, target, acked, err)
	ack.Level = level
	if ack.Status == AckAccepted {
		b.publishAffected(target)
	}
	return ack
}

// direct dispatches a single-device command.
func (b *Bridge) direct(ctx context.Context, command string, addr codec.Address) (bool, error) {
	switch command {
	case CommandOn:
		return b.modem.On(ctx, addr)
	case CommandOff:
		return b.modem.Off(ctx, addr)
	case CommandPing:
		return b.modem.Ping(ctx, addr)
	case CommandIDRequest:
		return b.modem.IDRequest(ctx, addr)
	default:
		return b.modem.Beep(ctx, addr)
	}
}

func (b *Bridge) invalid(cmd CommandMessage, target Target) AckMessage {
	b.failures.Add(1)
	msg := fmt.Sprintf("%v: %q for %s", ErrInvalidCommand, cmd.Command, target)
	return newAckError(cmd, target.String(), AckFailed, ErrCodeInvalidCommand, msg, b.now())
}

// ackFor maps a modem outcome to an ack.
func (b *Bridge) ackFor(cmd CommandMessage, target Target, acked bool, err error) AckMessage {
	now := b.now()
	t := target.String()
	switch {
	case err == nil && acked:
		return newAck(cmd, t, AckAccepted, now)
	case err == nil:
		b.failures.Add(1)
		return newAckError(cmd, t, AckFailed, ErrCodeNacked, "modem did not acknowledge the command", now)
	}

	b.failures.Add(1)
	b.logger.Error("command failed", "command_id", cmd.ID, "target", t, "error", err)
	switch {
	case errors.Is(err, modem.ErrNoResponse), errors.Is(err, context.DeadlineExceeded):
		return newAckError(cmd, t, AckTimeout, ErrCodeTimeout, err.Error(), now)
	case errors.Is(err, modem.ErrUnexpectedResponse), errors.Is(err, modem.ErrIncompleteFrame),
		errors.Is(err, modem.ErrNacked):
		return newAckError(cmd, t, AckFailed, ErrCodeProtocolError, err.Error(), now)
	default:
		return newAckError(cmd, t, AckFailed, ErrCodeBridgeError, err.Error(), now)
	}
}

// publishAffected publishes state for whatever an accepted command changed.
func (b *Bridge) publishAffected(target Target) {
	reg := b.modem.Registry()
	switch target.Kind {
	case TargetDevice:
		if d, ok := reg.Device(target.Address); ok {
			b.publishState(d)
		}
	case TargetGroup:
		g, ok := reg.Group(target.Group)
		if !ok {
			return
		}
		for _, addr := range g.Members {
			if d, ok := reg.Device(addr); ok {
				b.publishState(d)
			}
		}
	case TargetModem:
		if err := b.publishDiscovery(); err != nil {
			b.logger.Warn("failed to publish discovery", "error", err)
		}
	}
}

func (b *Bridge) publishAck(ack AckMessage) {
	if err := b.publishJSON(b.topics.BridgeAck(Protocol, ack.Target), ack, false); err != nil {
		b.logger.Error("failed to publish ack", "command_id", ack.CommandID, "error", err)
	}
}

// publishState publishes d's state if it differs from what was last
// published for it.
func (b *Bridge) publishState(d device.Device) {
	msg := newState(d, b.now())

	b.stateMu.Lock()
	prev, seen := b.stateCache[d.Address]
	if seen && sameState(prev, msg) {
		b.stateMu.Unlock()
		return
	}
	b.stateCache[d.Address] = msg
	b.stateMu.Unlock()

	if err := b.publishJSON(b.topics.BridgeState(Protocol, msg.Address), msg, true); err != nil {
		b.logger.Error("failed to publish state", "address", msg.Address, "error", err)
	}
}

func sameState(a, b StateMessage) bool {
	return a.On == b.On && a.Level == b.Level && a.LastCommand == b.LastCommand && a.Location == b.Location
}

func (b *Bridge) publishDiscovery() error {
	reg := b.modem.Registry()
	msg := DiscoveryMessage{
		Timestamp: b.now().UTC(),
		Devices:   reg.Devices(),
		Groups:    reg.Groups(),
	}
	return b.publishJSON(b.topics.BridgeDiscovery(Protocol), msg, true)
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", topic, err)
	}
	return b.mqtt.Publish(topic, payload, 1, retained)
}
