package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 1883, ClientID: "graylogic-insteon-test"},
		Auth:   config.MQTTAuthConfig{Username: "insteon", Password: "pw"},
		QoS:    1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     30,
		},
	}
}

// disconnectedClient returns a client whose paho client was never connected.
func disconnectedClient() *Client {
	c := newClient(testConfig())
	c.client = pahomqtt.NewClient(buildClientOptions(testConfig()))
	return c
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(testConfig())

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "graylogic-insteon-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "insteon" || opts.Password != "pw" {
		t.Error("credentials not set")
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and clean session")
	}
	if !opts.WillEnabled || opts.WillTopic != "graylogic/system/status" || !opts.WillRetained {
		t.Errorf("will = %v %q %v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	cfg := testConfig()
	cfg.Broker.TLS = true
	tlsOpts := buildClientOptions(cfg)
	if tlsOpts.Servers[0].Scheme != "ssl" || tlsOpts.TLSConfig == nil {
		t.Error("TLS not configured")
	}
}

func TestStatusPayload(t *testing.T) {
	var msg statusMessage
	if err := json.Unmarshal(statusPayload("id-1", "offline", "graceful_shutdown"), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Status != "offline" || msg.ClientID != "id-1" || msg.Reason != "graceful_shutdown" || msg.Timestamp == "" {
		t.Errorf("payload = %+v", msg)
	}
	if strings.Contains(string(statusPayload("id-1", "online", "")), "reason") {
		t.Error("empty reason should be omitted")
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Topics{}.BridgeCommand("insteon", "1a.2b.3c"), "graylogic/command/insteon/1a.2b.3c"},
		{Topics{}.BridgeAck("insteon", "group-1"), "graylogic/ack/insteon/group-1"},
		{Topics{}.BridgeState("insteon", "1a.2b.3c"), "graylogic/state/insteon/1a.2b.3c"},
		{Topics{}.BridgeHealth("insteon"), "graylogic/health/insteon"},
		{Topics{}.BridgeDiscovery("insteon"), "graylogic/discovery/insteon"},
		{Topics{}.BridgeSchedule("insteon"), "graylogic/schedule/insteon"},
		{Topics{}.AllBridgeCommands("insteon"), "graylogic/command/insteon/+"},
		{Topics{}.SystemStatus(), "graylogic/system/status"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q", tt.got)
			}
		})
	}
}

func TestPublishValidation(t *testing.T) {
	c := disconnectedClient()
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"bad qos", "t", nil, 3, ErrInvalidQoS},
		{"too large", "t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "t", []byte("{}"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := disconnectedClient()
	handler := func(string, []byte) error { return nil }
	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		want    error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"bad qos", "t", 5, handler, ErrInvalidQoS},
		{"nil handler", "t", 1, nil, ErrSubscribeFailed},
		{"disconnected", "t", 1, handler, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Subscribe(tt.topic, tt.qos, tt.handler); !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.want)
			}
		})
	}
	if c.HasSubscription("t") {
		t.Error("failed subscription was tracked")
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c := disconnectedClient()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v", err)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
}

func TestWrapHandler(t *testing.T) {
	c := newClient(testConfig())
	logger := &mockLogger{}
	c.SetLogger(logger)

	var got string
	c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})(nil, fakeMessage{topic: "a/b", payload: []byte("on")})
	if got != "a/b=on" {
		t.Errorf("handler saw %q", got)
	}

	c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })(nil, fakeMessage{topic: "a"})
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, fakeMessage{topic: "a"})

	if len(logger.warns) != 1 || len(logger.errors) != 1 {
		t.Errorf("warns = %v, errors = %v", logger.warns, logger.errors)
	}
}

func TestDisconnectCallback(t *testing.T) {
	c := newClient(testConfig())
	c.connected = true
	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })
	c.handleDisconnect(errors.New("eof"))
	if lost == nil || c.connected {
		t.Errorf("lost = %v, connected = %v", lost, c.connected)
	}
}
