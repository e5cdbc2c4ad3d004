// Package serial opens the modem's serial line and adapts it to the
// session's timed-read port.
package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/modem"
)

// PowerLinc modems talk 19200 8N1.
const (
	DefaultBaudRate = 19200
	dataBits        = 8
	stopBits        = 1
	parity          = "N"

	// pollTimeout is the driver-level read timeout. Read(timeout) loops in
	// steps of this size until its own deadline.
	pollTimeout = 20 * time.Millisecond

	readBufferSize = 256
)

// Config selects the device and speed.
type Config struct {
	Address  string
	BaudRate int
}

// Port implements modem.Port over a serial line.
type Port struct {
	rwc  io.ReadWriteCloser
	poll time.Duration

	mu  sync.Mutex
	buf []byte
}

var _ modem.Port = (*Port)(nil)

// Open opens the serial device described by cfg.
func Open(cfg Config) (*Port, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	rwc, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: cfg.BaudRate,
		DataBits: dataBits,
		StopBits: stopBits,
		Parity:   parity,
		Timeout:  pollTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Address, err)
	}
	return newPort(rwc, pollTimeout), nil
}

// Opener returns a modem.Opener that opens paths at baud.
func Opener(baud int) modem.Opener {
	return func(path string) (modem.Port, error) {
		return Open(Config{Address: path, BaudRate: baud})
	}
}

func newPort(rwc io.ReadWriteCloser, poll time.Duration) *Port {
	return &Port{rwc: rwc, poll: poll, buf: make([]byte, readBufferSize)}
}

// Read returns whatever arrives within timeout. It returns as soon as any
// bytes are available; an empty slice means the line stayed quiet.
func (p *Port) Read(timeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		n, err := p.rwc.Read(p.buf)
		if n > 0 {
			out := make([]byte, n)
			copy(out, p.buf[:n])
			return out, nil
		}
		switch {
		case err == nil, errors.Is(err, serial.ErrTimeout):
		default:
			return nil, err
		}
		if !time.Now().Add(p.poll).Before(deadline) {
			return nil, nil
		}
	}
}

// Write sends all of b.
func (p *Port) Write(b []byte) error {
	for len(b) > 0 {
		n, err := p.rwc.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

// Close closes the serial device.
func (p *Port) Close() error {
	return p.rwc.Close()
}
