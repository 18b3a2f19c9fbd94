package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/whallera/whallera/internal/protocol"
)

// Responder answers one request frame. Returning ok=false leaves the line
// silent, so the following read times out.
type Responder func(request []byte) (response []byte, ok bool)

// Memory is an in-process transport for tests and offline use. It records
// every written frame and answers from a queue of canned responses, or from a
// Responder when one is set.
type Memory struct {
	name      string
	mu        sync.Mutex
	writes    [][]byte
	queue     [][]byte
	pending   [][]byte
	responder Responder
	writeErr  error
	closed    bool
}

// NewMemory creates an empty memory transport
func NewMemory(name string) *Memory {
	if name == "" {
		name = "memory"
	}
	return &Memory{name: name}
}

// Enqueue adds canned responses. Each Write releases the next one for reading.
func (m *Memory) Enqueue(frames ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range frames {
		m.queue = append(m.queue, clone(f))
	}
}

// SetResponder replaces the canned queue with a function of the request
func (m *Memory) SetResponder(r Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = r
}

// FailWrites makes every subsequent Write fail with err wrapped as a
// transport error. Pass nil to stop failing.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Writes returns copies of all frames written so far
func (m *Memory) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		out[i] = clone(w)
	}
	return out
}

// LastWrite returns the most recent frame written, or nil
func (m *Memory) LastWrite() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return nil
	}
	return clone(m.writes[len(m.writes)-1])
}

func (m *Memory) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return protocol.NewTransportError("write on closed transport", io.ErrClosedPipe)
	}
	if m.writeErr != nil {
		return protocol.NewTransportError("write failed", m.writeErr)
	}

	m.writes = append(m.writes, clone(frame))

	switch {
	case m.responder != nil:
		if resp, ok := m.responder(clone(frame)); ok {
			m.pending = append(m.pending, resp)
		}
	case len(m.queue) > 0:
		m.pending = append(m.pending, m.queue[0])
		m.queue = m.queue[1:]
	}
	return nil
}

// ReadAvailable returns the response released by the last Write. With
// nothing pending it waits out the whole window and reports a timeout.
func (m *Memory) ReadAvailable(ctx context.Context, timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, protocol.NewTransportError("read on closed transport", io.ErrClosedPipe)
	}
	if len(m.pending) > 0 {
		resp := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()
		return resp, nil
	}
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, protocol.NewTimeoutError(timeout)
	}
}

// Close marks the transport closed
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) String() string {
	return SchemeMemory + m.name
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// DryRun answers every well-formed request with StatusOK and a zero-filled
// payload of the right shape, without keeping any device state. Malformed
// requests are answered with CHECKSUM_ERROR.
func DryRun(request []byte) ([]byte, bool) {
	req, err := protocol.DecodeRequest(request)
	if err != nil {
		return protocol.EncodeResponse(nil, protocol.StatusChecksumError), true
	}

	var payload []byte
	switch req.Command {
	case protocol.CmdReadBank:
		payload = protocol.Uint16(0)
	case protocol.CmdDeviceUnlock:
		payload = protocol.Uint8(0)
	case protocol.CmdVersion:
		payload = make([]byte, 18)
	case protocol.CmdExecScriptStatus:
		payload = protocol.Uint8(protocol.ScriptExitOK)
	}
	return protocol.EncodeResponse(payload, protocol.StatusOK), true
}
