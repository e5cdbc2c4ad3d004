package traffic

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/modem"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
	_ "github.com/nerrad567/gray-logic-insteon/migrations"
)

var (
	standardReceived = []byte{0x02, 0x50, 0xaa, 0xbb, 0xcc, 0x11, 0x22, 0x33, 0x2f, 0x19, 0x7f}
	getModemInfo     = []byte{0x02, 0x60}
)

func event(dir modem.Direction, b []byte) modem.TrafficEvent {
	return modem.TrafficEvent{Direction: dir, Sender: "plm", Timestamp: time.Unix(1700000000, 0), Bytes: b}
}

// collector is a Sink that keeps every frame.
type collector struct {
	mu     sync.Mutex
	frames []Frame
}

func (c *collector) Record(_ context.Context, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type captureLogger struct {
	mu    sync.Mutex
	debug []string
	warn  []string
}

func (l *captureLogger) Debug(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = append(l.debug, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *captureLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warn = append(l.warn, msg)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		ev      modem.TrafficEvent
		shape   *codec.Composite
		code    byte
		decoded bool
	}{
		{"host command", event(modem.CommandSent, getModemInfo), plm.GetModemInfo, 0x60, true},
		{"modem message", event(modem.ResponseReceived, standardReceived), plm.StandardMessageReceived, 0x50, true},
		{"lone nack", event(modem.ResponseReceived, []byte{0x15}), nil, 0x15, true},
		{"garbage", event(modem.ResponseReceived, []byte{0x02, 0x99, 0x00}), nil, 0x99, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Describe(tt.ev)
			if f.Code() != tt.code {
				t.Errorf("Code() = %#x, want %#x", f.Code(), tt.code)
			}
			if got := f.Summary() != "?"; got != tt.decoded {
				t.Errorf("Summary() = %q", f.Summary())
			}
			if tt.shape != nil {
				m, ok := f.Decoded[0].(codec.Message)
				if !ok || !m.Is(tt.shape) {
					t.Errorf("Decoded[0] = %v, want %s", f.Decoded[0], tt.shape.Name())
				}
			}
		})
	}
}

func TestRecorderDeliversInOrder(t *testing.T) {
	sink := &collector{}
	r := NewRecorder(Options{QueueSize: 8}, sink)

	r.ObserveTraffic(event(modem.CommandSent, getModemInfo))
	r.ObserveTraffic(event(modem.ResponseReceived, standardReceived))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for sink.len() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if sink.len() != 2 {
		t.Fatalf("delivered %d frames", sink.len())
	}
	if sink.frames[0].Direction != modem.CommandSent || sink.frames[1].Direction != modem.ResponseReceived {
		t.Error("frames out of order")
	}
	if recorded, dropped, _ := r.Stats(); recorded != 2 || dropped != 0 {
		t.Errorf("Stats() = %d recorded, %d dropped", recorded, dropped)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	sink := &collector{}
	r := NewRecorder(Options{QueueSize: 1}, sink)
	for n := 0; n < 3; n++ {
		r.ObserveTraffic(event(modem.CommandSent, getModemInfo))
	}
	if _, dropped, _ := r.Stats(); dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}

	// A cancelled Run still drains what was queued.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if sink.len() != 1 {
		t.Errorf("delivered %d, want 1 after drain", sink.len())
	}
}

func TestRecorderSinkFailureIsCounted(t *testing.T) {
	logger := &captureLogger{}
	good := &collector{}
	bad := SinkFunc(func(context.Context, Frame) error { return errors.New("disk full") })
	r := NewRecorder(Options{Logger: logger}, bad, good)

	r.deliver(context.Background(), event(modem.CommandSent, getModemInfo))

	if _, _, failed := r.Stats(); failed != 1 {
		t.Errorf("failed = %d", failed)
	}
	if good.len() != 1 {
		t.Error("later sink skipped after earlier failure")
	}
	if len(logger.warn) != 1 {
		t.Errorf("warnings = %v", logger.warn)
	}
}

func TestLogSink(t *testing.T) {
	logger := &captureLogger{}
	if err := (LogSink{Logger: logger}).Record(context.Background(), Describe(event(modem.CommandSent, getModemInfo))); err != nil {
		t.Fatal(err)
	}
	if len(logger.debug) != 1 {
		t.Fatalf("debug = %v", logger.debug)
	}
	for _, want := range []string{"dir", "H", "02 60"} {
		if !strings.Contains(logger.debug[0], want) {
			t.Errorf("log line %q missing %q", logger.debug[0], want)
		}
	}
}

type fakeWriter struct {
	sender, dir string
	code        byte
	size        int
}

func (w *fakeWriter) WriteTraffic(sender, direction string, code byte, size int, _ time.Time) {
	w.sender, w.dir, w.code, w.size = sender, direction, code, size
}

func TestMetricsSink(t *testing.T) {
	w := &fakeWriter{}
	if err := (MetricsSink{Writer: w}).Record(context.Background(), Describe(event(modem.ResponseReceived, standardReceived))); err != nil {
		t.Fatal(err)
	}
	if w.sender != "plm" || w.dir != "m" || w.code != 0x50 || w.size != len(standardReceived) {
		t.Errorf("writer saw %+v", w)
	}
}

func TestJournal(t *testing.T) {
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "journal.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() = %v", err)
	}

	j := NewJournal(db.DB)
	old := event(modem.CommandSent, getModemInfo)
	old.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := event(modem.ResponseReceived, standardReceived)
	recent.Timestamp = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, ev := range []modem.TrafficEvent{old, recent} {
		if err := j.Record(ctx, Describe(ev)); err != nil {
			t.Fatalf("Record() = %v", err)
		}
	}

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Direction != "m" || entries[0].Code != 0x50 || !entries[0].RecordedAt.Equal(recent.Timestamp) {
		t.Errorf("newest entry = %+v", entries[0])
	}
	if string(entries[1].Frame) != string(getModemInfo) {
		t.Errorf("oldest frame = % x", entries[1].Frame)
	}

	n, err := j.Prune(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || n != 1 {
		t.Errorf("Prune() = %d, %v; want 1", n, err)
	}
}
