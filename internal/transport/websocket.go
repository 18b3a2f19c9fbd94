package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whallera/whallera/internal/protocol"
)

// writeWait bounds a single WebSocket write when ctx has no deadline
const writeWait = 10 * time.Second

// ErrBridgeBusy is returned by DialWebSocket when another client already
// holds the bridge's device
var ErrBridgeBusy = errors.New("bridge busy: another session owns the device")

// ErrConnectionBroken is wrapped by every call made after the socket's own
// read deadline expired
var ErrConnectionBroken = errors.New("bridge connection broken by an earlier read timeout")

// WebSocket relays frames through a whallera bridge. Each request frame is
// one binary message; the bridge answers with one binary message holding the
// raw device reply, or an empty message when the device stayed silent.
//
// A silent device is reported by the bridge and leaves the connection
// usable. A silent bridge is different: once the socket read deadline
// expires gorilla/websocket refuses any further reads, so that call returns
// a TimeoutError and every later Write or ReadAvailable fails fast with a
// TransportError wrapping ErrConnectionBroken. Dial again to continue.
type WebSocket struct {
	url       string
	conn      *websocket.Conn
	readSlack time.Duration
	mu        sync.Mutex
	closed    bool
	broken    bool
}

// DialWebSocket connects to a bridge endpoint such as ws://host:8765/mp1.
func DialWebSocket(ctx context.Context, url string, opts Options) (*WebSocket, error) {
	opts = opts.withDefaults()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.DialTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, protocol.NewTransportError(fmt.Sprintf("failed to connect to %s", url), ErrBridgeBusy)
		}
		return nil, protocol.NewTransportError(fmt.Sprintf("failed to connect to %s", url), err)
	}

	return &WebSocket{
		url:       url,
		conn:      conn,
		readSlack: opts.ReadSlack,
	}, nil
}

func (w *WebSocket) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return protocol.NewTransportError("write on closed connection", io.ErrClosedPipe)
	}
	if w.broken {
		return protocol.NewTransportError("write failed", ErrConnectionBroken)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return protocol.NewTransportError("failed to set write deadline", err)
	}

	if err := w.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return protocol.NewTransportError("write failed", err)
	}
	return nil
}

// ReadAvailable waits for the bridge's reply. The bridge applies its own
// device timeout, so the socket deadline is timeout plus the configured slack.
func (w *WebSocket) ReadAvailable(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, protocol.NewTransportError("read on closed connection", io.ErrClosedPipe)
	}
	if w.broken {
		return nil, protocol.NewTransportError("read failed", ErrConnectionBroken)
	}

	if err := w.conn.SetReadDeadline(time.Now().Add(timeout + w.readSlack)); err != nil {
		return nil, protocol.NewTransportError("failed to set read deadline", err)
	}

	msgType, data, err := w.conn.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			w.broken = true
			return nil, protocol.NewTimeoutError(timeout)
		}
		if websocket.IsCloseError(err, websocket.CloseUnsupportedData, websocket.ClosePolicyViolation) {
			return nil, protocol.NewTransportError("bridge rejected request", err)
		}
		return nil, protocol.NewTransportError("read failed", err)
	}

	if msgType != websocket.BinaryMessage {
		return nil, protocol.NewFramingError(fmt.Sprintf("unexpected websocket message type %d", msgType), data)
	}
	if len(data) == 0 {
		return nil, protocol.NewTimeoutError(timeout)
	}
	return data, nil
}

// Close sends a normal closure and closes the connection
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

func (w *WebSocket) String() string {
	return w.url
}
