// Package heartbeat keeps a file's modification time fresh so that an
// outside watchdog, or the next startup, can tell when the process was last
// alive.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
)

// DefaultInterval is how often the heartbeat file is touched.
const DefaultInterval = 5 * time.Minute

// DefaultFile is the heartbeat file name used when none is configured.
const DefaultFile = "HEARTBEAT"

// Logger defines the logging interface used by the heartbeat.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Heartbeat touches one file.
type Heartbeat struct {
	path     string
	interval time.Duration
	logger   Logger
	now      func() time.Time
}

// New creates a heartbeat for path. A non-positive interval selects
// DefaultInterval and a nil logger discards output.
func New(path string, interval time.Duration, logger Logger) *Heartbeat {
	if path == "" {
		path = DefaultFile
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Heartbeat{path: path, interval: interval, logger: logger, now: time.Now}
}

// Path returns the heartbeat file path.
func (h *Heartbeat) Path() string { return h.path }

// Last returns the time of the most recent beat. The boolean is false when
// the file does not exist yet.
func (h *Heartbeat) Last() (time.Time, bool, error) {
	info, err := os.Stat(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("stat heartbeat: %w", err)
	}
	return info.ModTime(), true, nil
}

// LogPrevious reports the beat left behind by the previous run.
func (h *Heartbeat) LogPrevious() {
	last, ok, err := h.Last()
	switch {
	case err != nil:
		h.logger.Warn("reading last heartbeat", "path", h.path, "error", err)
	case !ok:
		h.logger.Info("no heartbeat before startup", "path", h.path)
	default:
		h.logger.Info("last heartbeat before startup",
			"path", h.path,
			"at", last.Format(scheduler.TimeFormat),
		)
	}
}

// Beat creates the file if needed and sets its modification time to now.
func (h *Heartbeat) Beat(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening heartbeat: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing heartbeat: %w", err)
	}
	now := h.now()
	if err := os.Chtimes(h.path, now, now); err != nil {
		return fmt.Errorf("touching heartbeat: %w", err)
	}
	return nil
}

// Event returns a scheduler event that beats every interval, starting now.
func (h *Heartbeat) Event() *scheduler.Event {
	return scheduler.NewEvent(h.Beat, scheduler.EveryAfter(h.interval), "heartbeat "+h.path)
}
