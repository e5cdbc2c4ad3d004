package modem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
)

// Session defaults.
const (
	// DefaultResponseTimeout is how long to wait for the first byte of a reply.
	DefaultResponseTimeout = time.Second

	// DefaultFrameGap is how long to wait for further bytes once a frame has
	// started, or for another frame after one has completed.
	DefaultFrameGap = 100 * time.Millisecond

	// DefaultName is the traffic sender name when Options.Name is empty.
	DefaultName = "plm"

	// maxSkippedFrames bounds how many unsolicited frames an exchange will
	// step over while waiting for its echo.
	maxSkippedFrames = 16
)

// Port is the duplex byte channel to the modem.
type Port interface {
	// Read returns the bytes available within timeout. An empty result with
	// a nil error means nothing arrived.
	Read(timeout time.Duration) ([]byte, error)

	// Write sends all of p.
	Write(p []byte) error

	// Close releases the channel.
	Close() error
}

// Opener opens the byte channel at path.
type Opener func(path string) (Port, error)

// Logger defines the logging interface used by the Session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Session.
type Options struct {
	// Name identifies the session as the sender of traffic events.
	Name string

	// ResponseTimeout is how long an exchange waits for the modem to start
	// answering.
	ResponseTimeout time.Duration

	// FrameGap is how long to wait for the rest of a frame, or for a
	// following frame in a burst.
	FrameGap time.Duration

	// Registry receives discovered devices and groups. A new registry is
	// created when nil.
	Registry *device.Registry

	// Observer receives every frame written and read.
	Observer TrafficObserver

	// Logger receives session diagnostics.
	Logger Logger

	// Clock stamps traffic events. Defaults to time.Now.
	Clock func() time.Time
}

// Stats holds session counters.
//
// Counters only grow for the life of a session. The bridge compares two
// snapshots to decide whether errors or timeouts increased between health
// reports.
type Stats struct {
	CommandsSent   uint64 `json:"commands_sent"`
	FramesReceived uint64 `json:"frames_received"`
	Acks           uint64 `json:"acks"`
	Nacks          uint64 `json:"nacks"`
	Timeouts       uint64 `json:"timeouts"`
	Unsolicited    uint64 `json:"unsolicited"`
	Errors         uint64 `json:"errors"`
}

// Session mediates communication with one modem.
//
// A session owns the port and a buffer of bytes read but not yet framed.
// Every operation that talks to the modem runs as one exchange under the
// session lock: write the host command, then read frames until the echo
// arrives. Unsolicited frames read while waiting are applied to the
// registry and skipped, so an exchange never mistakes another device's
// broadcast for its own reply.
//
// Operations that take a context check it before and after waiting for
// the lock. A context that ends mid-exchange does not interrupt the serial
// read already in progress; the exchange runs to its timeout.
//
// All methods are safe for concurrent use; exchanges are serialised.
type Session struct {
	port Port
	opts Options

	mu      sync.Mutex // serialises exchanges and guards pending
	pending []byte
	closed  bool

	commandsSent   atomic.Uint64
	framesReceived atomic.Uint64
	acks           atomic.Uint64
	nacks          atomic.Uint64
	timeouts       atomic.Uint64
	unsolicited    atomic.Uint64
	errs           atomic.Uint64
}

// Open opens the channel at path and starts a session on it.
//
// Parameters:
//   - open: Opens the byte channel, normally the serial port opener
//   - path: Device path of the modem, e.g. /dev/ttyUSB0
//   - opts: Session options; zero values take the package defaults
//
// Returns:
//   - *Session: The session, ready for exchanges
//   - error: The opener's error wrapped with the path
func Open(open Opener, path string, opts Options) (*Session, error) {
	port, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("opening modem %s: %w", path, err)
	}
	return NewSession(port, opts), nil
}

// NewSession starts a session on an already open port.
func NewSession(port Port, opts Options) *Session {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = DefaultResponseTimeout
	}
	if opts.FrameGap <= 0 {
		opts.FrameGap = DefaultFrameGap
	}
	if opts.Registry == nil {
		opts.Registry = device.NewRegistry()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Session{port: port, opts: opts}
}

// Close closes the underlying port. It waits for any exchange in progress.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("closing modem port: %w", err)
	}
	return nil
}

// Name returns the session's traffic sender name.
func (s *Session) Name() string { return s.opts.Name }

// Registry returns the registry the session updates.
func (s *Session) Registry() *device.Registry { return s.opts.Registry }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		CommandsSent:   s.commandsSent.Load(),
		FramesReceived: s.framesReceived.Load(),
		Acks:           s.acks.Load(),
		Nacks:          s.nacks.Load(),
		Timeouts:       s.timeouts.Load(),
		Unsolicited:    s.unsolicited.Load(),
		Errors:         s.errs.Load(),
	}
}

// lock takes the session lock for an exchange on behalf of ctx. It fails,
// without holding the lock, when ctx ended while waiting for it.
func (s *Session) lock(ctx context.Context) error {
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	return nil
}

// SendCommand writes msg to the modem without waiting for a reply.
func (s *Session) SendCommand(msg codec.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.write(codec.Encode(msg))
}

// ReadResponse reads the frames the modem sends in one burst: it waits up
// to the response timeout for the first frame, then collects further frames
// for as long as they follow within the frame gap. It returns nil when the
// modem sent nothing.
func (s *Session) ReadResponse() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.readBurst(s.opts.ResponseTimeout)
}

// write sends raw bytes and publishes the traffic event. Callers hold s.mu.
func (s *Session) write(b []byte) error {
	s.opts.Observer.ObserveTraffic(TrafficEvent{
		Direction: CommandSent,
		Sender:    s.opts.Name,
		Timestamp: s.opts.Clock(),
		Bytes:     append([]byte(nil), b...),
	})
	if err := s.port.Write(b); err != nil {
		s.errs.Add(1)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	s.commandsSent.Add(1)
	s.opts.Logger.Debug("command sent", "bytes", codec.HexDump(b))
	return nil
}

// readBurst reads frames until the line goes quiet. Callers hold s.mu.
func (s *Session) readBurst(first time.Duration) ([][]byte, error) {
	var frames [][]byte
	timeout := first
	for {
		frame, err := s.readFrame(timeout)
		if err != nil {
			return frames, err
		}
		if frame == nil {
			return frames, nil
		}
		frames = append(frames, frame)
		timeout = s.opts.FrameGap
	}
}

// readFrame returns the next complete frame, reading from the port as
// needed. It returns nil, nil when nothing arrives within timeout. Callers
// hold s.mu.
//
// A frame that starts but does not complete gets one further FrameGap to
// finish before ErrIncompleteFrame. Bytes that cannot start a frame, and
// frames with an unknown code, are returned as-is so they still reach the
// traffic log; they will not decode.
func (s *Session) readFrame(timeout time.Duration) ([]byte, error) {
	extended := false
	for {
		if frame := s.nextFrame(); frame != nil {
			s.framesReceived.Add(1)
			s.opts.Observer.ObserveTraffic(TrafficEvent{
				Direction: ResponseReceived,
				Sender:    s.opts.Name,
				Timestamp: s.opts.Clock(),
				Bytes:     append([]byte(nil), frame...),
			})
			return frame, nil
		}

		chunk, err := s.port.Read(timeout)
		if err != nil {
			s.errs.Add(1)
			return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
		}
		if len(chunk) > 0 {
			s.pending = append(s.pending, chunk...)
			timeout = s.opts.FrameGap
			continue
		}

		if len(s.pending) == 0 {
			s.timeouts.Add(1)
			return nil, nil
		}
		if !extended {
			extended = true
			timeout = s.opts.FrameGap
			continue
		}
		partial := s.pending
		s.pending = nil
		s.errs.Add(1)
		return nil, fmt.Errorf("%w: % x", ErrIncompleteFrame, partial)
	}
}

// nextFrame pops one complete frame off the pending buffer, or returns nil
// if more bytes are needed.
func (s *Session) nextFrame() []byte {
	if len(s.pending) == 0 {
		return nil
	}
	n, err := plm.FrameLength(s.pending)
	switch {
	case errors.Is(err, plm.ErrUnknownFrame) && !isFrameStart(s.pending[0]):
		// Leading noise: hand back everything up to the next frame start.
		n = len(s.pending)
		for i := 1; i < len(s.pending); i++ {
			if isFrameStart(s.pending[i]) {
				n = i
				break
			}
		}
		s.opts.Logger.Warn("discarding unframed bytes", "bytes", codec.HexDump(s.pending[:n]))
	case err != nil:
		// Start byte with an unknown code: the rest of the burst is unframeable.
		n = len(s.pending)
		s.opts.Logger.Warn("unknown frame code", "bytes", codec.HexDump(s.pending))
	case n == 0 || n > len(s.pending):
		return nil
	}
	frame := append([]byte(nil), s.pending[:n]...)
	s.pending = s.pending[n:]
	if len(s.pending) == 0 {
		s.pending = nil
	}
	return frame
}

func isFrameStart(b byte) bool {
	return b == plm.StartByte.Code() || b == plm.Nack.Code()
}

// isBusy reports whether frame is the modem's lone Nack.
func isBusy(frame []byte) bool {
	return len(frame) == 1 && frame[0] == plm.Nack.Code()
}

// exchange sends msg and waits for its echo. Callers hold s.mu.
//
// It returns the decoded reply and whether the modem acknowledged. A busy
// Nack returns the zero Message and false.
//
// Frames whose command code differs from the one sent are treated as
// unsolicited traffic and skipped, up to maxSkippedFrames. A frame with
// the right code must decode as the reply shape and repeat the sent bytes
// exactly, otherwise the exchange fails with ErrUnexpectedResponse.
func (s *Session) exchange(msg codec.Message) (codec.Message, bool, error) {
	if s.closed {
		return codec.Message{}, false, ErrClosed
	}
	shape, ok := plm.ReplyFor(msg.Shape())
	if !ok {
		return codec.Message{}, false, fmt.Errorf("%w: %s", ErrNoReplyShape, msg.Shape().Name())
	}
	sent := codec.Encode(msg)
	if err := s.write(sent); err != nil {
		return codec.Message{}, false, err
	}

	timeout := s.opts.ResponseTimeout
	for skipped := 0; skipped <= maxSkippedFrames; skipped++ {
		frame, err := s.readFrame(timeout)
		if err != nil {
			return codec.Message{}, false, err
		}
		if frame == nil {
			return codec.Message{}, false, fmt.Errorf("%w: %s", ErrNoResponse, msg.Shape().Name())
		}
		if isBusy(frame) {
			s.nacks.Add(1)
			s.opts.Logger.Debug("modem busy", "command", msg.Shape().Name())
			return codec.Message{}, false, nil
		}
		if len(frame) < 2 || frame[1] != sent[1] {
			s.applyIncoming(frame)
			continue
		}
		return s.verifyEcho(shape, sent, frame)
	}
	s.errs.Add(1)
	return codec.Message{}, false, fmt.Errorf("%w: no echo of %s after %d frames",
		ErrUnexpectedResponse, msg.Shape().Name(), maxSkippedFrames)
}

// verifyEcho decodes an echo frame and checks it repeats the sent bytes.
func (s *Session) verifyEcho(shape *codec.Composite, sent, frame []byte) (codec.Message, bool, error) {
	v, _, err := codec.Decode(shape, frame, 0)
	if err != nil {
		s.errs.Add(1)
		return codec.Message{}, false, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if !bytes.HasPrefix(frame, sent) {
		s.errs.Add(1)
		return codec.Message{}, false, fmt.Errorf("%w: echo % x does not repeat command % x",
			ErrUnexpectedResponse, frame, sent)
	}
	reply, _ := v.(codec.Message)
	if reply.Tag("ack") != plm.Ack {
		s.nacks.Add(1)
		return reply, false, nil
	}
	s.acks.Add(1)
	return reply, true, nil
}

// Execute sends any host command that has an echo shape and reports
// whether the modem acknowledged it.
func (s *Session) Execute(msg codec.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, acked, err := s.exchange(msg)
	if err != nil {
		return false, err
	}
	if msg.Is(plm.SendMessage) {
		s.recordDirect(msg, acked)
	}
	return acked, nil
}
