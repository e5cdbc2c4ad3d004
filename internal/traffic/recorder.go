package traffic

import (
	"context"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/modem"
)

// DefaultQueueSize is used when Options.QueueSize is not positive.
const DefaultQueueSize = 256

// Sink consumes decoded frames.
type Sink interface {
	Record(ctx context.Context, f Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f Frame) error

// Record implements Sink.
func (fn SinkFunc) Record(ctx context.Context, f Frame) error { return fn(ctx, f) }

// Logger defines the logging interface used by the recorder and LogSink.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Recorder.
type Options struct {
	QueueSize int
	Logger    Logger
}

// Recorder fans observed frames out to sinks on its own goroutine.
type Recorder struct {
	queue  chan modem.TrafficEvent
	sinks  []Sink
	logger Logger

	recorded atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
}

var _ modem.TrafficObserver = (*Recorder)(nil)

// NewRecorder creates a recorder feeding sinks.
func NewRecorder(opts Options, sinks ...Sink) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Recorder{
		queue:  make(chan modem.TrafficEvent, opts.QueueSize),
		sinks:  sinks,
		logger: opts.Logger,
	}
}

// ObserveTraffic queues ev. It never blocks; a full queue drops the frame.
func (r *Recorder) ObserveTraffic(ev modem.TrafficEvent) {
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Run delivers queued frames until ctx is cancelled, then drains what is
// already queued and returns nil.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.queue:
			r.deliver(ctx, ev)
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx))
			return nil
		}
	}
}

// drain delivers what is already queued using a context that is not
// cancelled, so the journal can store the final frames.
func (r *Recorder) drain(ctx context.Context) {
	for {
		select {
		case ev := <-r.queue:
			r.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (r *Recorder) deliver(ctx context.Context, ev modem.TrafficEvent) {
	f := Describe(ev)
	for _, sink := range r.sinks {
		if err := sink.Record(ctx, f); err != nil {
			r.failed.Add(1)
			r.logger.Warn("traffic sink failed", "error", err)
		}
	}
	r.recorded.Add(1)
}

// Stats reports frames delivered, dropped at the queue and sink failures.
func (r *Recorder) Stats() (recorded, dropped, failed uint64) {
	return r.recorded.Load(), r.dropped.Load(), r.failed.Load()
}
