package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/whallera/whallera/internal/protocol"
)

func TestMemory_QueuedResponses(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test")
	first := protocol.EncodeResponse(nil, protocol.StatusOK)
	second := protocol.EncodeResponse(nil, protocol.StatusDeviceLocked)
	m.Enqueue(first, second)

	// Nothing is readable before a write releases it
	if _, err := m.ReadAvailable(ctx, time.Millisecond); !protocol.IsTimeoutError(err) {
		t.Fatalf("read before write: error = %v, want timeout", err)
	}

	for i, want := range [][]byte{first, second} {
		req := protocol.Encode(protocol.CmdDeviceLocked, nil)
		if err := m.Write(ctx, req); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
		got, err := m.ReadAvailable(ctx, time.Second)
		if err != nil {
			t.Fatalf("ReadAvailable() #%d error: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("response #%d = % X, want % X", i, got, want)
		}
	}

	if n := len(m.Writes()); n != 2 {
		t.Errorf("recorded %d writes, want 2", n)
	}
	if !bytes.Equal(m.LastWrite(), []byte{0xAA, 0x20, 0x55, 0xDF}) {
		t.Errorf("LastWrite() = % X", m.LastWrite())
	}
}

func TestMemory_TimeoutAfterWindow(t *testing.T) {
	m := NewMemory("silent")
	_ = m.Write(context.Background(), []byte{0xAA, 0x3F, 0x55, 0xC0})

	timeout := 30 * time.Millisecond
	start := time.Now()
	_, err := m.ReadAvailable(context.Background(), timeout)
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Fatalf("error = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Errorf("timed out after %s, before the %s window", elapsed, timeout)
	}
}

func TestMemory_Responder(t *testing.T) {
	m := NewMemory("")
	m.SetResponder(func(req []byte) ([]byte, bool) {
		if req[1] == byte(protocol.CmdFactoryReset) {
			return nil, false
		}
		return protocol.EncodeResponse(nil, protocol.StatusOK), true
	})

	ctx := context.Background()
	_ = m.Write(ctx, protocol.Encode(protocol.CmdDeviceLock, nil))
	if _, err := m.ReadAvailable(ctx, time.Second); err != nil {
		t.Fatalf("ReadAvailable() error: %v", err)
	}

	_ = m.Write(ctx, protocol.Encode(protocol.CmdFactoryReset, nil))
	if _, err := m.ReadAvailable(ctx, 5*time.Millisecond); !protocol.IsTimeoutError(err) {
		t.Errorf("silent responder: error = %v, want timeout", err)
	}
	if m.String() != "mem://memory" {
		t.Errorf("String() = %q", m.String())
	}
}

func TestMemory_Failures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("broken")
	m.FailWrites(io.ErrUnexpectedEOF)

	err := m.Write(ctx, []byte{0xAA})
	if !protocol.IsTransportError(err) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Write() error = %v", err)
	}

	m.FailWrites(nil)
	_ = m.Close()
	if err := m.Write(ctx, []byte{0xAA}); !protocol.IsTransportError(err) {
		t.Errorf("Write() after Close error = %v", err)
	}
	if _, err := m.ReadAvailable(ctx, time.Millisecond); !protocol.IsTransportError(err) {
		t.Errorf("ReadAvailable() after Close error = %v", err)
	}
}

func TestDryRun(t *testing.T) {
	tests := []struct {
		cmd         protocol.Command
		payload     []byte
		wantPayload int
	}{
		{protocol.CmdReadBank, protocol.Uint8(3), 2},
		{protocol.CmdDeviceUnlock, protocol.Uint32(1234), 1},
		{protocol.CmdVersion, nil, 18},
		{protocol.CmdExecScriptStatus, nil, 1},
		{protocol.CmdDeviceLock, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			raw, ok := DryRun(protocol.Encode(tt.cmd, tt.payload))
			if !ok {
				t.Fatal("DryRun stayed silent")
			}
			resp, err := protocol.Decode(raw)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if resp.Status != protocol.StatusOK {
				t.Errorf("status = %s", resp.Status)
			}
			if len(resp.Payload) != tt.wantPayload {
				t.Errorf("payload length = %d, want %d", len(resp.Payload), tt.wantPayload)
			}
		})
	}

	raw, _ := DryRun([]byte{0x00, 0x01})
	if resp, err := protocol.Decode(raw); err != nil || resp.Status != protocol.StatusChecksumError {
		t.Errorf("malformed request: resp = %v, err = %v", resp, err)
	}
}

func TestOpen_Memory(t *testing.T) {
	tr, err := Open(context.Background(), "mem://dry-run", Options{})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer func() { _ = tr.Close() }()

	if tr.String() != "mem://dry-run" {
		t.Errorf("String() = %q", tr.String())
	}
	if _, err := Open(context.Background(), "  ", Options{}); err == nil {
		t.Error("Open(empty) succeeded")
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{BaudRate: 9600}.withDefaults()
	if o.BaudRate != 9600 {
		t.Errorf("BaudRate = %d", o.BaudRate)
	}
	if o.PollInterval != DefaultPollInterval || o.DialTimeout != DefaultDialTimeout || o.ReadSlack != DefaultReadSlack {
		t.Errorf("defaults not applied: %+v", o)
	}
}
