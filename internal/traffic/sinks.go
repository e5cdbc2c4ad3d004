package traffic

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
)

// LogSink writes every frame to the log at debug level.
type LogSink struct {
	Logger Logger
}

// Record implements Sink.
func (s LogSink) Record(_ context.Context, f Frame) error {
	s.Logger.Debug("modem traffic",
		"dir", f.Direction.Abbrev(),
		"sender", f.Sender,
		"bytes", codec.HexDump(f.Bytes),
		"decoded", f.Summary(),
	)
	return nil
}

// TrafficWriter is the metrics surface MetricsSink writes to. The InfluxDB
// client implements it.
type TrafficWriter interface {
	WriteTraffic(sender, direction string, code byte, size int, at time.Time)
}

// MetricsSink writes one point per frame.
type MetricsSink struct {
	Writer TrafficWriter
}

// Record implements Sink.
func (s MetricsSink) Record(_ context.Context, f Frame) error {
	s.Writer.WriteTraffic(f.Sender, f.Direction.Abbrev(), f.Code(), len(f.Bytes), f.Timestamp)
	return nil
}
