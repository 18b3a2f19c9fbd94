package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/whallera/whallera/internal/protocol"
)

// readChunk is the buffer size for a single serial read
const readChunk = 256

// port is the subset of serial.Port the adapter uses
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Serial talks to the device over a USB CDC serial line.
type Serial struct {
	path         string
	port         port
	pollInterval time.Duration
	mu           sync.Mutex
	closed       bool
}

// OpenSerial opens path at opts.BaudRate, 8N1.
func OpenSerial(path string, opts Options) (*Serial, error) {
	opts = opts.withDefaults()

	p, err := serial.Open(path, &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, protocol.NewTransportError(fmt.Sprintf("failed to open %s: %s", path, describePortError(err)), err)
	}

	if err := p.SetReadTimeout(opts.PollInterval); err != nil {
		_ = p.Close()
		return nil, protocol.NewTransportError("failed to set read timeout", err)
	}

	return newSerial(path, p, opts.PollInterval), nil
}

func newSerial(path string, p port, pollInterval time.Duration) *Serial {
	return &Serial{
		path:         path,
		port:         p,
		pollInterval: pollInterval,
	}
}

// Write discards any stale input and then writes frame in full.
func (s *Serial) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return protocol.NewTransportError("write on closed port", io.ErrClosedPipe)
	}

	// Leftovers from an earlier timed-out exchange would corrupt the next reply
	if err := s.port.ResetInputBuffer(); err != nil {
		return protocol.NewTransportError("failed to flush input", err)
	}

	for written := 0; written < len(frame); {
		n, err := s.port.Write(frame[written:])
		if err != nil {
			return protocol.NewTransportError("write failed", err)
		}
		if n == 0 {
			return protocol.NewTransportError("write failed", io.ErrShortWrite)
		}
		written += n
	}
	return nil
}

// ReadAvailable polls the port every poll interval until bytes arrive, then
// keeps reading until one poll passes with nothing new. A line still busy
// when timeout expires (noise, wrong baud rate) is a framing error.
func (s *Serial) ReadAvailable(ctx context.Context, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, protocol.NewTransportError("read on closed port", io.ErrClosedPipe)
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, readChunk)
	var out []byte

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// go.bug.st/serial returns 0, nil when the read timeout elapses
		n, err := s.port.Read(buf)
		if err != nil {
			return nil, protocol.NewTransportError("read failed", err)
		}
		if n > 0 {
			out = append(out, buf[:n]...)
			if !time.Now().Before(deadline) {
				return nil, protocol.NewFramingError(
					fmt.Sprintf("line did not go quiet within %s", timeout), out)
			}
			continue
		}

		if len(out) > 0 {
			return out, nil
		}
		if !time.Now().Before(deadline) {
			return nil, protocol.NewTimeoutError(timeout)
		}
	}
}

// Close releases the port. Closing twice is a no-op.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

func (s *Serial) String() string {
	return s.path
}

// describePortError turns go.bug.st/serial error codes into short advice
func describePortError(err error) string {
	var code serial.PortErrorCode
	var ptrErr *serial.PortError
	var valErr serial.PortError
	switch {
	case errors.As(err, &ptrErr):
		code = ptrErr.Code()
	case errors.As(err, &valErr):
		code = valErr.Code()
	default:
		return err.Error()
	}

	switch code {
	case serial.PortNotFound:
		return "port not found"
	case serial.PortBusy:
		return "port busy (another program has it open)"
	case serial.PermissionDenied:
		return "permission denied"
	case serial.InvalidSpeed:
		return "unsupported baud rate"
	default:
		return err.Error()
	}
}
