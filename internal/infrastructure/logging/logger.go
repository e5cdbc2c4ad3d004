package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "graylogic-insteon"

// Logger wraps slog.Logger. It is safe for concurrent use.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New creates a logger from configuration. When output is "file" the file
// is opened for appending and must be released with Close.
func New(cfg config.LoggingConfig, version string) (*Logger, error) {
	var (
		output io.Writer
		closer io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0o750); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec // configured path
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		output, closer = f, f
	default:
		output = os.Stdout
	}

	l := NewWithWriter(cfg, version, output)
	l.closer = closer
	return l, nil
}

// NewWithWriter creates a logger writing to w, ignoring cfg.Output.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// parseLevel maps debug, info, warn and error; anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger with additional attributes.
//
//	modemLog := logger.With("component", "modem")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Close releases the log file, if any. Child loggers created with With do
// not own the file.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default returns a JSON stdout logger for use before configuration is
// loaded.
func Default() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "dev", os.Stdout)
}
