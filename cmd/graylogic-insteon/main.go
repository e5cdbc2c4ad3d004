// Gray Logic Insteon - PowerLinc Modem service
//
// This is the main entry point for the Gray Logic Insteon service. It owns
// the serial link to an Insteon PowerLinc Modem and runs:
//   - a modem session that discovers devices and sends commands
//   - an event scheduler for polling, heartbeats and timed automations
//   - an MQTT bridge so Gray Logic Core can drive Insteon devices
//   - optional traffic journaling (SQLite) and metrics (InfluxDB)
//   - an optional HTTP API with a live traffic stream
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-insteon/migrations"

	"github.com/nerrad567/gray-logic-insteon/internal/api"
	"github.com/nerrad567/gray-logic-insteon/internal/automation"
	"github.com/nerrad567/gray-logic-insteon/internal/bridges/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/heartbeat"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/serial"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/modem"
	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
	"github.com/nerrad567/gray-logic-insteon/internal/solar"
	"github.com/nerrad567/gray-logic-insteon/internal/traffic"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// pruneInterval is how often old journal entries are deleted.
const pruneInterval = 24 * time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Insteon",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log, err = logging.New(cfg.Logging, version)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer log.Close() //nolint:errcheck // nothing left to log to
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving site timezone: %w", err)
	}

	// Traffic sinks
	var sinks []traffic.Sink
	if cfg.Traffic.LogFrames {
		sinks = append(sinks, traffic.LogSink{Logger: log})
	}

	var (
		db      *database.DB
		journal *traffic.Journal
	)
	if cfg.Database.JournalTraffic {
		db, err = database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("traffic journal ready", "path", cfg.Database.Path)

		journal = traffic.NewJournal(db.DB)
		sinks = append(sinks, journal)
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sinks = append(sinks, traffic.MetricsSink{Writer: influxClient})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.GetPingInterval(), log)
		sinks = append(sinks, hub)
	}

	recorder := traffic.NewRecorder(traffic.Options{QueueSize: cfg.Traffic.QueueSize, Logger: log}, sinks...)

	schedOpts := scheduler.Options{
		Logger:         log,
		EmptyQueueWait: cfg.GetEmptyQueueWait(),
	}
	if influxClient != nil {
		schedOpts.Listener = schedulerMetrics{influx: influxClient}
	}
	sched := scheduler.New(schedOpts)

	if journal != nil && cfg.GetJournalRetention() > 0 {
		if addErr := sched.Add(pruneEvent(journal, cfg.GetJournalRetention(), log)); addErr != nil {
			return fmt.Errorf("scheduling journal pruning: %w", addErr)
		}
	}

	// Modem session
	registry := device.NewRegistry()
	registry.SetLogger(log)

	session, err := modem.Open(serial.Opener(cfg.Modem.BaudRate), cfg.Modem.Port, modem.Options{
		Name:            cfg.Modem.Name,
		ResponseTimeout: cfg.GetResponseTimeout(),
		FrameGap:        cfg.GetFrameGap(),
		Registry:        registry,
		Observer:        recorder,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("opening modem: %w", err)
	}
	defer func() {
		log.Info("closing modem")
		if closeErr := session.Close(); closeErr != nil {
			log.Error("error closing modem", "error", closeErr)
		}
	}()
	log.Info("modem opened", "port", cfg.Modem.Port, "baud", cfg.Modem.BaudRate)

	if cfg.Modem.LoadOnStart {
		if loadErr := session.LoadDevices(ctx); loadErr != nil {
			log.Error("loading devices from modem", "error", loadErr)
		}
	}
	if cfg.Modem.DeviceFile != "" {
		n, descErr := device.LoadDescriptionsFile(cfg.Modem.DeviceFile, registry)
		if descErr != nil {
			return fmt.Errorf("loading device descriptions: %w", descErr)
		}
		log.Info("device descriptions applied", "path", cfg.Modem.DeviceFile, "devices", n)
	}

	if cfg.Scheduler.Heartbeat.Enabled {
		hb := heartbeat.New(cfg.Scheduler.Heartbeat.File, cfg.GetHeartbeatInterval(), log)
		hb.LogPrevious()
		if addErr := sched.Add(hb.Event()); addErr != nil {
			return fmt.Errorf("scheduling heartbeat: %w", addErr)
		}
	}

	if influxClient != nil && cfg.GetHealthInterval() > 0 {
		if addErr := sched.Add(deviceMetricsEvent(registry, influxClient, cfg.GetHealthInterval())); addErr != nil {
			return fmt.Errorf("scheduling device metrics: %w", addErr)
		}
	}

	// MQTT bridge, or a bare listener when MQTT is off
	var (
		mqttClient *mqtt.Client
		commands   api.Commander
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		bridge, bridgeErr := insteon.New(insteon.Options{
			MQTT:           mqttClient,
			Modem:          session,
			Schedule:       sched,
			Logger:         log,
			Version:        version,
			PollInterval:   cfg.GetPollInterval(),
			HealthInterval: cfg.GetHealthInterval(),
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating Insteon bridge: %w", bridgeErr)
		}
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting Insteon bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping Insteon bridge")
			bridge.Stop()
		}()
		commands = bridge
		if cfg.GetPollInterval() > 0 {
			if addErr := sched.Add(bridge.PollEvent()); addErr != nil {
				return fmt.Errorf("scheduling modem polling: %w", addErr)
			}
		}
		if cfg.GetHealthInterval() > 0 {
			if addErr := sched.Add(bridge.HealthEvent()); addErr != nil {
				return fmt.Errorf("scheduling bridge health: %w", addErr)
			}
		}
	} else {
		log.Info("MQTT disabled, bridge not started")
		if cfg.GetPollInterval() > 0 {
			if addErr := sched.Add(listenEvent(session, cfg.GetPollInterval(), log)); addErr != nil {
				return fmt.Errorf("scheduling modem listening: %w", addErr)
			}
		}
	}

	// Timed automations
	if err := scheduleAutomations(cfg, sched, session, loc, log); err != nil {
		return err
	}

	// HTTP API
	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Registry: registry,
			Commands: commands,
			Schedule: sched,
			Hub:      hub,
			Version:  version,
		}
		if journal != nil {
			deps.Journal = journal
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal", "scheduled_events", sched.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	err = g.Wait()

	recorded, dropped, failed := recorder.Stats()
	log.Info("Gray Logic Insteon stopped",
		"frames_recorded", recorded,
		"frames_dropped", dropped,
		"sink_failures", failed,
	)
	return err
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// scheduleAutomations loads the configured rules and adds one event each.
func scheduleAutomations(cfg *config.Config, sched *scheduler.Scheduler, session *modem.Session, loc *time.Location, log *logging.Logger) error {
	if len(cfg.Automations) == 0 {
		return nil
	}
	rules := automation.NewRegistry()
	rules.SetLogger(log)
	for _, r := range automation.RulesFromConfig(cfg.Automations) {
		if _, err := rules.Add(r); err != nil {
			return fmt.Errorf("loading automations: %w", err)
		}
	}

	engine := automation.NewEngine(rules, sched, automation.EngineOptions{
		Action: func(msg codec.Message) scheduler.Action {
			return modem.CommandAction(session, msg)
		},
		Solar:    solar.New(cfg.Site.Location.Latitude, cfg.Site.Location.Longitude),
		Location: loc,
		Logger:   log,
	})
	if _, err := engine.ScheduleAll(); err != nil {
		return fmt.Errorf("scheduling automations: %w", err)
	}
	return nil
}

// healthCheck verifies the optional infrastructure connections.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	return nil
}

// incomingProcessor is the part of a modem session listenEvent needs.
type incomingProcessor interface {
	ProcessIncoming(ctx context.Context) ([]codec.Message, error)
}

// listenEvent drains unsolicited modem traffic into the registry when no
// bridge is running. Only channel failures end the event.
func listenEvent(p incomingProcessor, interval time.Duration, log *logging.Logger) *scheduler.Event {
	return scheduler.NewEvent(func(ctx context.Context) error {
		_, err := p.ProcessIncoming(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, modem.ErrReadFailed) || errors.Is(err, modem.ErrClosed) {
			return err
		}
		log.Warn("listening to modem", "error", err)
		return nil
	}, scheduler.EveryAfter(interval), "listen to insteon modem")
}

// pruner deletes journal entries older than a cutoff.
type pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// pruneEvent deletes journal entries older than retention once a day.
func pruneEvent(j pruner, retention time.Duration, log *logging.Logger) *scheduler.Event {
	return scheduler.NewEvent(func(ctx context.Context) error {
		n, err := j.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		log.Info("traffic journal pruned", "deleted", n)
		return nil
	}, scheduler.EveryAfter(pruneInterval), "prune traffic journal")
}

// deviceStateWriter is the metrics surface deviceMetricsEvent writes to.
type deviceStateWriter interface {
	WriteDeviceState(address, location string, level uint8)
}

// deviceMetricsEvent writes the level of every device that has reported one.
func deviceMetricsEvent(reg *device.Registry, w deviceStateWriter, interval time.Duration) *scheduler.Event {
	return scheduler.NewEvent(func(context.Context) error {
		for _, d := range reg.Devices() {
			if d.State != nil {
				w.WriteDeviceState(d.Address.String(), d.Location, *d.State)
			}
		}
		return nil
	}, scheduler.EveryAfter(interval), "write device state metrics")
}

// schedulerMetrics forwards scheduler records to InfluxDB.
type schedulerMetrics struct {
	influx interface {
		WriteSchedulerRun(operation, event string, duration time.Duration, at time.Time)
	}
}

// ObserveSchedule implements scheduler.Listener.
func (m schedulerMetrics) ObserveSchedule(r scheduler.Record) {
	m.influx.WriteSchedulerRun(string(r.Operation), r.Description, r.Duration, r.Timestamp)
}
