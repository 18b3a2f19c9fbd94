package transport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultBaudRate is the MP1 USB CDC line speed
	DefaultBaudRate = 115200

	// DefaultPollInterval is how long a single serial read waits for bytes
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultDialTimeout bounds the WebSocket handshake
	DefaultDialTimeout = 5 * time.Second

	// DefaultReadSlack is added to the read window on network transports to
	// cover the round trip to the bridge
	DefaultReadSlack = 2 * time.Second
)

// Transport is a half-duplex byte channel to one device.
//
// Write sends a complete request frame. ReadAvailable blocks until at least
// one byte has arrived, then returns everything that arrives before the line
// goes quiet. If nothing arrives within timeout it returns a protocol timeout
// error. Failures of the underlying I/O are returned as protocol transport
// errors.
type Transport interface {
	Write(ctx context.Context, frame []byte) error
	ReadAvailable(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
	String() string
}

// Options tune the adapter chosen by Open. Zero values take the defaults.
type Options struct {
	BaudRate     int
	PollInterval time.Duration
	DialTimeout  time.Duration
	ReadSlack    time.Duration
}

// DefaultOptions returns Options populated with the package defaults
func DefaultOptions() Options {
	return Options{
		BaudRate:     DefaultBaudRate,
		PollInterval: DefaultPollInterval,
		DialTimeout:  DefaultDialTimeout,
		ReadSlack:    DefaultReadSlack,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BaudRate <= 0 {
		o.BaudRate = d.BaudRate
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.ReadSlack <= 0 {
		o.ReadSlack = d.ReadSlack
	}
	return o
}

// Endpoint schemes understood by Open
const (
	SchemeWebSocket       = "ws://"
	SchemeSecureWebSocket = "wss://"
	SchemeMemory          = "mem://"
)

// Open connects to endpoint and returns the matching adapter.
//
//   - ws:// and wss:// URLs dial a whallera bridge
//   - mem://<name> returns an in-memory dry-run device
//   - anything else is treated as a serial device path
func Open(ctx context.Context, endpoint string, opts Options) (Transport, error) {
	opts = opts.withDefaults()
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("no interface given")
	}

	switch {
	case strings.HasPrefix(endpoint, SchemeWebSocket), strings.HasPrefix(endpoint, SchemeSecureWebSocket):
		return DialWebSocket(ctx, endpoint, opts)
	case strings.HasPrefix(endpoint, SchemeMemory):
		name := strings.TrimPrefix(endpoint, SchemeMemory)
		mem := NewMemory(name)
		mem.SetResponder(DryRun)
		return mem, nil
	default:
		return OpenSerial(endpoint, opts)
	}
}
