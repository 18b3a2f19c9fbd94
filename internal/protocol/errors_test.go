package protocol

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

func TestErrorMatching(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		match error
		check func(error) bool
	}{
		{"framing", NewFramingError("missing stop byte", []byte{0xAA}), ErrFraming, IsFramingError},
		{"checksum", NewChecksumError(0x22, 0x23, nil), ErrChecksum, IsChecksumError},
		{"timeout", NewTimeoutError(time.Second), ErrTimeout, IsTimeoutError},
		{"transport", NewTransportError("write failed", io.ErrClosedPipe), ErrTransport, IsTransportError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("read bank: %w", tt.err)
			if !errors.Is(wrapped, tt.match) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.match)
			}
			if !tt.check(wrapped) {
				t.Errorf("type check failed for %v", wrapped)
			}
			if !IsProtocolError(wrapped) {
				t.Errorf("IsProtocolError(%v) = false", wrapped)
			}
			for _, other := range []error{ErrFraming, ErrChecksum, ErrTimeout, ErrTransport} {
				if other != tt.match && errors.Is(wrapped, other) {
					t.Errorf("%v unexpectedly matches %v", wrapped, other)
				}
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := NewTransportError("write failed", io.ErrClosedPipe)
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Error("cause not reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "caused by") {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Retryable {
		t.Error("transport errors should not be retryable")
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError(250 * time.Millisecond)
	if !err.Retryable {
		t.Error("timeout should be retryable")
	}
	if err.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %s", err.Timeout)
	}
}

func TestHints(t *testing.T) {
	if hints := TroubleshootingHint(NewTimeoutError(time.Second)); len(hints) == 0 {
		t.Error("no hints for timeout")
	}
	if hints := TroubleshootingHint(errors.New("plain")); hints != nil {
		t.Errorf("hints for plain error = %v", hints)
	}
	if got := ShortErrorMessage(errors.New("plain")); got != "plain" {
		t.Errorf("ShortErrorMessage() = %q", got)
	}
	if got := ShortErrorMessage(NewChecksumError(1, 2, nil)); !strings.Contains(got, "checksum") {
		t.Errorf("ShortErrorMessage() = %q", got)
	}
}
