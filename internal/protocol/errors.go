package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of a protocol-level failure
type ErrorType int

const (
	// ErrTypeFraming indicates a missing or wrong start/stop sentinel, or a
	// response too short for the command's layout
	ErrTypeFraming ErrorType = iota
	// ErrTypeChecksum indicates the recomputed checksum differs from the transmitted one
	ErrTypeChecksum
	// ErrTypeTimeout indicates no bytes arrived within the read window
	ErrTypeTimeout
	// ErrTypeTransport indicates an I/O failure reported by the transport adapter
	ErrTypeTransport
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeFraming:
		return "Framing Error"
	case ErrTypeChecksum:
		return "Checksum Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeTransport:
		return "Transport Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Sentinels for errors.Is matching against an *Error of the same type
var (
	ErrFraming   = &Error{Type: ErrTypeFraming}
	ErrChecksum  = &Error{Type: ErrTypeChecksum}
	ErrTimeout   = &Error{Type: ErrTypeTimeout}
	ErrTransport = &Error{Type: ErrTypeTransport}
)

// Error is a protocol-level failure. Device status codes are never reported
// through Error; they are returned as data.
type Error struct {
	Type    ErrorType     // Category of error
	Message string        // Human-readable error message
	Err     error         // Underlying adapter error (transport errors only)
	Raw     []byte        // Offending frame bytes, if any
	Timeout time.Duration // Read window that elapsed (timeouts only)

	// Retryable hints that repeating the call may succeed. The codec and client
	// never act on it; retry policy belongs to the caller.
	Retryable bool
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(e.Type.String())
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Type, so errors.Is(err, ErrTimeout) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NewFramingError creates a framing error for a malformed frame
func NewFramingError(message string, raw []byte) *Error {
	return &Error{
		Type:    ErrTypeFraming,
		Message: message,
		Raw:     raw,
	}
}

// NewChecksumError creates a checksum mismatch error
func NewChecksumError(computed, transmitted byte, raw []byte) *Error {
	return &Error{
		Type:    ErrTypeChecksum,
		Message: fmt.Sprintf("checksum mismatch: computed 0x%02x, transmitted 0x%02x", computed, transmitted),
		Raw:     raw,
	}
}

// NewTimeoutError creates a timeout error for a read window that elapsed empty
func NewTimeoutError(timeout time.Duration) *Error {
	return &Error{
		Type:      ErrTypeTimeout,
		Message:   fmt.Sprintf("no response within %s", timeout),
		Timeout:   timeout,
		Retryable: true,
	}
}

// NewTransportError wraps an adapter I/O failure
func NewTransportError(message string, err error) *Error {
	return &Error{
		Type:      ErrTypeTransport,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

func errorType(err error) (ErrorType, bool) {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Type, true
	}
	return 0, false
}

// IsFramingError checks if an error is a framing error
func IsFramingError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeFraming
}

// IsChecksumError checks if an error is a checksum error
func IsChecksumError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeChecksum
}

// IsTimeoutError checks if an error is a read timeout
func IsTimeoutError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeTimeout
}

// IsTransportError checks if an error is a transport I/O failure
func IsTransportError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeTransport
}

// IsProtocolError checks if an error belongs to the protocol taxonomy at all
func IsProtocolError(err error) bool {
	_, ok := errorType(err)
	return ok
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) []string {
	t, ok := errorType(err)
	if !ok {
		return nil
	}

	switch t {
	case ErrTypeTimeout:
		return []string{
			"Check that the device is plugged in and powered",
			"Verify the interface path (run 'whallera discover')",
			"Try increasing --timeout",
			"Make sure no other program holds the serial port",
		}
	case ErrTypeChecksum:
		return []string{
			"The response was corrupted on the line",
			"Check the USB cable and try again",
			"Verify the baud rate matches the device",
		}
	case ErrTypeFraming:
		return []string{
			"The response was incomplete or malformed",
			"Verify the baud rate matches the device",
			"Unplug and reconnect the device, then retry",
		}
	case ErrTypeTransport:
		return []string{
			"The interface could not be read or written",
			"Check permissions on the serial device (dialout group on Linux)",
			"Reconnect the device and retry",
		}
	default:
		return nil
	}
}

// ShortErrorMessage returns a concise, user-friendly error message
func ShortErrorMessage(err error) string {
	t, ok := errorType(err)
	if !ok {
		return err.Error()
	}

	switch t {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeChecksum:
		return "Corrupted response (checksum mismatch)"
	case ErrTypeFraming:
		return "Incomplete or malformed message"
	case ErrTypeTransport:
		return "Interface I/O error"
	default:
		return err.Error()
	}
}
