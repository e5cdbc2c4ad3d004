package heartbeat

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
)

type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureLogger) Info(msg string, args ...any) { c.add(msg, args) }
func (c *captureLogger) Warn(msg string, args ...any) { c.add(msg, args) }

func (c *captureLogger) add(msg string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, fmt.Sprint(append([]any{msg}, args...)...))
}

func TestBeatCreatesAndTouches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HEARTBEAT")
	h := New(path, time.Minute, nil)

	if _, ok, err := h.Last(); err != nil || ok {
		t.Fatalf("Last() before beat = %v, %v", ok, err)
	}

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return first }
	if err := h.Beat(context.Background()); err != nil {
		t.Fatalf("Beat() error = %v", err)
	}
	last, ok, err := h.Last()
	if err != nil || !ok || !last.Equal(first) {
		t.Fatalf("Last() = %v, %v, %v; want %v", last, ok, err, first)
	}

	second := first.Add(5 * time.Minute)
	h.now = func() time.Time { return second }
	if err := h.Beat(context.Background()); err != nil {
		t.Fatalf("second Beat() error = %v", err)
	}
	if last, _, _ := h.Last(); !last.Equal(second) {
		t.Errorf("Last() = %v, want %v", last, second)
	}
}

func TestBeatCancelled(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "HEARTBEAT"), 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Beat(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestBeatUnwritableDirectory(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "missing", "HEARTBEAT"), 0, nil)
	if err := h.Beat(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLogPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HEARTBEAT")
	log := &captureLogger{}
	h := New(path, 0, log)

	h.LogPrevious()
	if err := h.Beat(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.LogPrevious()

	if len(log.msgs) != 2 {
		t.Fatalf("messages = %v", log.msgs)
	}
	if got := log.msgs[0]; got[:len("no heartbeat")] != "no heartbeat" {
		t.Errorf("first message = %q", got)
	}
	if got := log.msgs[1]; got[:len("last heartbeat")] != "last heartbeat" {
		t.Errorf("second message = %q", got)
	}
}

func TestEvent(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "HEARTBEAT"), 0, nil)
	ev := h.Event()
	if ev.NextTime() != scheduler.EveryAfter(DefaultInterval) {
		t.Errorf("NextTime() = %v", ev.NextTime())
	}
	if ev.State() != scheduler.Unscheduled {
		t.Errorf("State() = %v", ev.State())
	}
}
