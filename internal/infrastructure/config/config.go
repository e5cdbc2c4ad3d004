package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone database for minimal images

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Site        SiteConfig         `yaml:"site"`
	Modem       ModemConfig        `yaml:"modem"`
	Scheduler   SchedulerConfig    `yaml:"scheduler"`
	Database    DatabaseConfig     `yaml:"database"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig     `yaml:"influxdb"`
	Logging     LoggingConfig      `yaml:"logging"`
	Traffic     TrafficConfig      `yaml:"traffic"`
	API         APIConfig          `yaml:"api"`
	Automations []AutomationConfig `yaml:"automations"`
}

// SiteConfig identifies the installation and where it is.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig holds the coordinates used for sunrise and sunset.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// ModemConfig describes the PowerLinc modem serial connection.
type ModemConfig struct {
	Name              string `yaml:"name"`
	Port              string `yaml:"port"`
	BaudRate          int    `yaml:"baud_rate"`
	ResponseTimeoutMS int    `yaml:"response_timeout_ms"`
	FrameGapMS        int    `yaml:"frame_gap_ms"`

	// DeviceFile is an optional tab-separated file of device locations.
	DeviceFile string `yaml:"device_file"`

	// LoadOnStart reads modem info and the link database at startup.
	LoadOnStart bool `yaml:"load_on_start"`
}

// SchedulerConfig contains scheduler timings, all in seconds.
type SchedulerConfig struct {
	EmptyQueueWait int             `yaml:"empty_queue_wait"`
	Heartbeat      HeartbeatConfig `yaml:"heartbeat"`

	// PollInterval is how often unsolicited modem traffic is processed.
	PollInterval int `yaml:"poll_interval"`

	// HealthInterval is how often bridge health is published.
	HealthInterval int `yaml:"health_interval"`
}

// HeartbeatConfig configures the heartbeat file.
type HeartbeatConfig struct {
	Enabled  bool   `yaml:"enabled"`
	File     string `yaml:"file"`
	Interval int    `yaml:"interval"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// JournalTraffic stores every modem frame in the database.
	JournalTraffic bool `yaml:"journal_traffic"`

	// JournalRetentionDays is how long journaled frames are kept. Zero
	// keeps them forever.
	JournalRetentionDays int `yaml:"journal_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"` // stdout, stderr or file
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig is used when Output is "file".
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// TrafficConfig controls modem traffic recording.
type TrafficConfig struct {
	// QueueSize bounds frames waiting for the recorder; excess frames are
	// dropped and counted.
	QueueSize int `yaml:"queue_size"`

	// LogFrames writes every frame to the log at debug level.
	LogFrames bool `yaml:"log_frames"`
}

// APIConfig configures the HTTP status and command API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	// Timeouts in seconds.
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
	IdleTimeout  int `yaml:"idle_timeout"`

	// JWTSecret enables bearer-token auth on everything but /health.
	JWTSecret string `yaml:"jwt_secret"`

	// PingInterval is the websocket keepalive period in seconds.
	PingInterval int `yaml:"ping_interval"`
}

// AutomationConfig is one timed command rule.
type AutomationConfig struct {
	ID            string `yaml:"id"`
	Description   string `yaml:"description"`
	At            string `yaml:"at"` // sunrise, sunset or HH:MM
	OffsetMinutes int    `yaml:"offset_minutes"`
	Command       string `yaml:"command"`
	Target        string `yaml:"target"` // device address or group-N
}

// Load reads configuration from a YAML file, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Modem: ModemConfig{
			Name:              "plm",
			Port:              "/dev/ttyUSB0",
			BaudRate:          19200,
			ResponseTimeoutMS: 1000,
			FrameGapMS:        100,
			LoadOnStart:       true,
		},
		Scheduler: SchedulerConfig{
			EmptyQueueWait: 300,
			Heartbeat: HeartbeatConfig{
				Enabled:  true,
				File:     "HEARTBEAT",
				Interval: 300,
			},
			PollInterval:   1,
			HealthInterval: 30,
		},
		Database: DatabaseConfig{
			Path:                 "./data/insteon.db",
			WALMode:              true,
			BusyTimeout:          5,
			JournalRetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-insteon",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Traffic: TrafficConfig{
			QueueSize: 256,
		},
		API: APIConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			ReadTimeout:  10,
			WriteTimeout: 30,
			IdleTimeout:  60,
			PingInterval: 30,
		},
	}
}

// applyEnvOverrides applies GRAYLOGIC_SECTION_KEY environment variables.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"GRAYLOGIC_SITE_TIMEZONE", &cfg.Site.Timezone},
		{"GRAYLOGIC_MODEM_PORT", &cfg.Modem.Port},
		{"GRAYLOGIC_DATABASE_PATH", &cfg.Database.Path},
		{"GRAYLOGIC_MQTT_HOST", &cfg.MQTT.Broker.Host},
		{"GRAYLOGIC_MQTT_USERNAME", &cfg.MQTT.Auth.Username},
		{"GRAYLOGIC_MQTT_PASSWORD", &cfg.MQTT.Auth.Password},
		{"GRAYLOGIC_INFLUXDB_TOKEN", &cfg.InfluxDB.Token},
		{"GRAYLOGIC_API_JWT_SECRET", &cfg.API.JWTSecret},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a known zone", c.Site.Timezone))
	}
	if lat := c.Site.Location.Latitude; lat < -90 || lat > 90 {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if lon := c.Site.Location.Longitude; lon < -180 || lon > 180 {
		errs = append(errs, "site.location.longitude must be between -180 and 180")
	}

	if c.Modem.Port == "" {
		errs = append(errs, "modem.port is required")
	}
	if c.Modem.BaudRate <= 0 {
		errs = append(errs, "modem.baud_rate must be positive")
	}
	if c.Modem.ResponseTimeoutMS <= 0 {
		errs = append(errs, "modem.response_timeout_ms must be positive")
	}
	if c.Modem.FrameGapMS <= 0 {
		errs = append(errs, "modem.frame_gap_ms must be positive")
	}

	if c.Scheduler.PollInterval < 0 || c.Scheduler.HealthInterval < 0 {
		errs = append(errs, "scheduler intervals must not be negative")
	}

	if c.Database.JournalTraffic && c.Database.Path == "" {
		errs = append(errs, "database.path is required when journal_traffic is set")
	}
	if c.Database.JournalRetentionDays < 0 {
		errs = append(errs, "database.journal_retention_days must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	for i, a := range c.Automations {
		if a.At == "" || a.Command == "" {
			errs = append(errs, fmt.Sprintf("automations[%d] needs at and command", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location resolves the site timezone. An empty timezone means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Site.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Site.Timezone)
}

// GetResponseTimeout returns how long the modem has to answer a command.
func (c *Config) GetResponseTimeout() time.Duration {
	return time.Duration(c.Modem.ResponseTimeoutMS) * time.Millisecond
}

// GetFrameGap returns the silence that ends a burst of modem output.
func (c *Config) GetFrameGap() time.Duration {
	return time.Duration(c.Modem.FrameGapMS) * time.Millisecond
}

// GetEmptyQueueWait returns the scheduler's idle sleep.
func (c *Config) GetEmptyQueueWait() time.Duration {
	return time.Duration(c.Scheduler.EmptyQueueWait) * time.Second
}

// GetHeartbeatInterval returns the heartbeat period.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.Scheduler.Heartbeat.Interval) * time.Second
}

// GetPollInterval returns how often incoming traffic is processed. Zero
// disables polling.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Scheduler.PollInterval) * time.Second
}

// GetJournalRetention returns how long journaled frames are kept, zero
// meaning forever.
func (c *Config) GetJournalRetention() time.Duration {
	return time.Duration(c.Database.JournalRetentionDays) * 24 * time.Hour
}

// GetHealthInterval returns how often health is published. Zero disables
// health reporting.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Scheduler.HealthInterval) * time.Second
}

// GetPingInterval returns the websocket keepalive period.
func (c *Config) GetPingInterval() time.Duration {
	return time.Duration(c.API.PingInterval) * time.Second
}
