// Package transport provides the byte channels the device client runs over.
//
// Three adapters satisfy Transport:
//
//   - Serial: a USB CDC line opened with go.bug.st/serial (115200 8N1)
//   - WebSocket: a whallera bridge reached over ws:// or wss://
//   - Memory: an in-process fake with canned or computed replies
//
// Open picks one from an endpoint string:
//
//	t, err := transport.Open(ctx, "/dev/ttyACM0", transport.Options{})
//	t, err := transport.Open(ctx, "ws://10.0.0.5:8765/mp1", transport.Options{})
//	t, err := transport.Open(ctx, "mem://dry-run", transport.Options{})
//
// # Read Semantics
//
// ReadAvailable waits up to the given timeout for the first byte. Once data
// starts arriving it keeps collecting until the line is quiet for one poll
// interval, then returns what it has. Frame validation is left to the
// protocol package.
//
// Errors are protocol.Error values of type Timeout or Transport, so callers
// can classify them with protocol.IsTimeoutError and friends. Context
// cancellation is returned as the context's error.
package transport
