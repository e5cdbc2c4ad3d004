package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/modem"
	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingModem verifies run fails when the serial port cannot be opened.
func TestRun_MissingModem(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	configContent := `
site:
  id: test-site
  timezone: UTC

modem:
  port: ` + filepath.Join(tmpDir, "no-such-tty") + `

scheduler:
  heartbeat:
    enabled: false

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYLOGIC_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "opening modem") {
		t.Fatalf("run() error = %v, want modem open failure", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
	t.Setenv("GRAYLOGIC_CONFIG", "/etc/graylogic/insteon.yaml")
	if got := getConfigPath(); got != "/etc/graylogic/insteon.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestHealthCheck_NothingEnabled(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil, nil); err != nil {
		t.Errorf("healthCheck() = %v", err)
	}
}

type fakeIncoming struct{ err error }

func (f fakeIncoming) ProcessIncoming(context.Context) ([]codec.Message, error) { return nil, f.err }

// outcome collects scheduler records from the scheduler goroutine.
type outcome struct {
	mu      sync.Mutex
	records []scheduler.Record
}

func (o *outcome) ObserveSchedule(r scheduler.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, r)
}

func (o *outcome) has(ops ...scheduler.Operation) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.records {
		for _, op := range ops {
			if r.Operation == op {
				return true
			}
		}
	}
	return false
}

// fireOnce runs ev through a scheduler until its first occurrence has
// finished and returns what the scheduler reported.
func fireOnce(t *testing.T, ev *scheduler.Event) *outcome {
	t.Helper()
	o := &outcome{}
	s := scheduler.New(scheduler.Options{Listener: o})
	if err := s.Add(ev); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !o.has(scheduler.OpDone, scheduler.OpFailed) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Fatal(err)
	}
	return o
}

func TestListenEvent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want scheduler.Operation
	}{
		{"quiet line", nil, scheduler.OpDone},
		{"truncated frame", modem.ErrIncompleteFrame, scheduler.OpDone},
		{"unplugged", modem.ErrReadFailed, scheduler.OpFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := fireOnce(t, listenEvent(fakeIncoming{err: tt.err}, time.Hour, quietLogger()))
			if !o.has(tt.want) {
				t.Errorf("no %s record", tt.want)
			}
		})
	}
}

type fakePruner struct {
	cutoff time.Time
	err    error
}

func (f *fakePruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestPruneEvent(t *testing.T) {
	p := &fakePruner{}
	o := fireOnce(t, pruneEvent(p, 48*time.Hour, quietLogger()))
	if !o.has(scheduler.OpDone) {
		t.Fatal("prune did not complete")
	}
	age := time.Since(p.cutoff)
	if age < 47*time.Hour || age > 49*time.Hour {
		t.Errorf("cutoff age = %v, want about 48h", age)
	}

	failing := &fakePruner{err: errors.New("database is locked")}
	if o := fireOnce(t, pruneEvent(failing, time.Hour, quietLogger())); !o.has(scheduler.OpFailed) {
		t.Error("failing prune was not reported")
	}
}

type fakeStateWriter struct{ levels map[string]uint8 }

func (f *fakeStateWriter) WriteDeviceState(address, _ string, level uint8) {
	f.levels[address] = level
}

func TestDeviceMetricsEvent(t *testing.T) {
	reg := device.NewRegistry()
	lamp := codec.Address{0xaa, 0xbb, 0xcc}
	reg.UpdateDevice(lamp, func(d *device.Device) {
		level := uint8(0x80)
		d.State = &level
	})
	reg.UpdateDevice(codec.Address{1, 2, 3}, func(*device.Device) {})

	w := &fakeStateWriter{levels: map[string]uint8{}}
	fireOnce(t, deviceMetricsEvent(reg, w, time.Hour))

	if len(w.levels) != 1 || w.levels["aa.bb.cc"] != 0x80 {
		t.Errorf("levels = %v", w.levels)
	}
}

type fakeRunWriter struct{ ops []string }

func (f *fakeRunWriter) WriteSchedulerRun(operation, _ string, _ time.Duration, _ time.Time) {
	f.ops = append(f.ops, operation)
}

func TestSchedulerMetrics(t *testing.T) {
	w := &fakeRunWriter{}
	m := schedulerMetrics{influx: w}
	m.ObserveSchedule(scheduler.Record{Operation: scheduler.OpDone, Description: "heartbeat"})
	if len(w.ops) != 1 || w.ops[0] != string(scheduler.OpDone) {
		t.Errorf("ops = %v", w.ops)
	}
}
