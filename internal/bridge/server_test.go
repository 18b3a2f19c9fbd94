package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/whallera/whallera/internal/device"
	"github.com/whallera/whallera/internal/logging"
	"github.com/whallera/whallera/internal/protocol"
	"github.com/whallera/whallera/internal/transport"
)

// startBridge serves a bridge in front of dev on an httptest server
func startBridge(t *testing.T, cfg Config, dev transport.Transport) (*Server, string) {
	t.Helper()
	srv := New(cfg, dev)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dryRunDevice() *transport.Memory {
	dev := transport.NewMemory("bridge-test")
	dev.SetResponder(transport.DryRun)
	return dev
}

func scrape(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestBridge_RelaysCommands(t *testing.T) {
	dev := dryRunDevice()
	_, url := startBridge(t, Config{}, dev)

	ctx := context.Background()
	ws, err := transport.DialWebSocket(ctx, url+DefaultPath, transport.Options{})
	if err != nil {
		t.Fatalf("DialWebSocket() error: %v", err)
	}
	client := device.New(ws, device.WithTimeout(500*time.Millisecond))
	defer func() { _ = client.Close() }()

	info, err := client.Version(ctx)
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if !info.OK() {
		t.Errorf("Version() status = %s", info.Status)
	}

	bank, err := client.ReadBank(ctx, 3)
	if err != nil {
		t.Fatalf("ReadBank() error: %v", err)
	}
	if !bank.OK() || len(bank.Content) != 0 {
		t.Errorf("ReadBank() = %+v", bank)
	}

	writes := dev.Writes()
	if len(writes) != 2 {
		t.Fatalf("device saw %d writes, want 2", len(writes))
	}
	if writes[1][1] != byte(protocol.CmdReadBank) {
		t.Errorf("second relayed command = 0x%02x", writes[1][1])
	}
}

func TestBridge_SilentDeviceYieldsTimeout(t *testing.T) {
	dev := transport.NewMemory("silent")
	srv, url := startBridge(t, Config{DeviceTimeout: 30 * time.Millisecond}, dev)

	ctx := context.Background()
	ws, err := transport.DialWebSocket(ctx, url+DefaultPath, transport.Options{ReadSlack: time.Second})
	if err != nil {
		t.Fatalf("DialWebSocket() error: %v", err)
	}
	client := device.New(ws, device.WithTimeout(30*time.Millisecond))
	defer func() { _ = client.Close() }()

	_, err = client.DeviceLocked(ctx)
	if !protocol.IsTimeoutError(err) {
		t.Fatalf("DeviceLocked() error = %v, want timeout", err)
	}

	// The session stays usable after a device timeout
	dev.SetResponder(transport.DryRun)
	reply, err := client.DeviceLocked(ctx)
	if err != nil || !reply.OK() {
		t.Fatalf("DeviceLocked() after timeout = %v, %v", reply, err)
	}

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	body := scrape(t, ts.URL+"/metrics")
	if !strings.Contains(body, "whallera_bridge_device_timeouts_total 1") {
		t.Errorf("timeout not counted:\n%s", body)
	}
}

func TestBridge_SecondClientRefused(t *testing.T) {
	srv, url := startBridge(t, Config{}, dryRunDevice())
	ctx := context.Background()

	first, err := transport.DialWebSocket(ctx, url+DefaultPath, transport.Options{})
	if err != nil {
		t.Fatalf("first DialWebSocket() error: %v", err)
	}

	_, err = transport.DialWebSocket(ctx, url+DefaultPath, transport.Options{})
	if !errors.Is(err, transport.ErrBridgeBusy) {
		t.Fatalf("second DialWebSocket() error = %v, want ErrBridgeBusy", err)
	}
	if !protocol.IsTransportError(err) {
		t.Errorf("busy refusal should be a transport error: %v", err)
	}

	_ = first.Close()

	// The device is released once the first session winds down
	deadline := time.Now().Add(2 * time.Second)
	for srv.ActiveSessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not released after client closed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	again, err := transport.DialWebSocket(ctx, url+DefaultPath, transport.Options{})
	if err != nil {
		t.Fatalf("DialWebSocket() after release error: %v", err)
	}
	_ = again.Close()
}

func TestBridge_RejectsInvalidMessages(t *testing.T) {
	tests := []struct {
		name     string
		msgType  int
		data     []byte
		wantCode int
	}{
		{"text message", websocket.TextMessage, []byte("hello"), websocket.CloseUnsupportedData},
		{"bad checksum", websocket.BinaryMessage, []byte{0xAA, 0x10, 0x55, 0x00}, websocket.ClosePolicyViolation},
		{"truncated", websocket.BinaryMessage, []byte{0xAA, 0x10}, websocket.ClosePolicyViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := dryRunDevice()
			_, url := startBridge(t, Config{}, dev)

			conn, _, err := websocket.DefaultDialer.Dial(url+DefaultPath, nil)
			if err != nil {
				t.Fatalf("Dial() error: %v", err)
			}
			defer func() { _ = conn.Close() }()

			if err := conn.WriteMessage(tt.msgType, tt.data); err != nil {
				t.Fatalf("WriteMessage() error: %v", err)
			}
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err = conn.ReadMessage()
			if !websocket.IsCloseError(err, tt.wantCode) {
				t.Errorf("ReadMessage() error = %v, want close %d", err, tt.wantCode)
			}
			if n := len(dev.Writes()); n != 0 {
				t.Errorf("invalid message reached the device (%d writes)", n)
			}
		})
	}
}

func TestBridge_LogsRejectedFrameBytes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	_, url := startBridge(t, Config{}, dryRunDevice())
	conn, _, err := websocket.DefaultDialer.Dial(url+DefaultPath, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xAA, 0x10, 0x55, 0x00}); err != nil {
		t.Fatalf("WriteMessage() error: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, _ = conn.ReadMessage()

	entries := logs.FilterMessage("Invalid request frame bytes").All()
	if len(entries) != 1 {
		t.Fatalf("got %d raw byte entries, want 1", len(entries))
	}
	if hex := entries[0].ContextMap()["hex"]; hex != "AA 10 55 00" {
		t.Errorf("hex = %v, want AA 10 55 00", hex)
	}
}

func TestBridge_RateLimit(t *testing.T) {
	dev := dryRunDevice()
	_, url := startBridge(t, Config{CommandsPerSecond: 0.001, Burst: 1}, dev)

	conn, _, err := websocket.DefaultDialer.Dial(url+DefaultPath, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	frame := protocol.Encode(protocol.CmdDeviceLocked, nil)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatal(err)
	}
	if _, reply, err := conn.ReadMessage(); err != nil || len(reply) == 0 {
		t.Fatalf("first request = %x, %v", reply, err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatal(err)
	}
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("second request error = %v, want policy violation close", err)
	}
	if n := len(dev.Writes()); n != 1 {
		t.Errorf("device saw %d writes, want 1", n)
	}
}

func TestBridge_HealthAndMetrics(t *testing.T) {
	srv := New(Config{}, dryRunDevice())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	if body := scrape(t, ts.URL+"/healthz"); strings.TrimSpace(body) != "ok idle" {
		t.Errorf("/healthz = %q", body)
	}

	srv.Metrics().Frames.WithLabelValues(protocol.CmdVersion.String()).Inc()
	body := scrape(t, ts.URL+"/metrics")
	for _, want := range []string{
		`whallera_bridge_frames_total{cmd="VERSION"} 1`,
		"whallera_bridge_active_sessions 0",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestBridge_ShutdownRefusesNewSessions(t *testing.T) {
	srv, url := startBridge(t, Config{}, dryRunDevice())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	_, err := transport.DialWebSocket(context.Background(), url+DefaultPath, transport.Options{})
	if !errors.Is(err, transport.ErrBridgeBusy) {
		t.Errorf("DialWebSocket() after shutdown error = %v", err)
	}
}

func TestBridge_ShutdownWaitsForReservedSession(t *testing.T) {
	srv := New(Config{}, dryRunDevice())

	// A handler that has reserved the device but not yet upgraded
	if !srv.reserve() {
		t.Fatal("reserve() = false on an idle bridge")
	}

	done := make(chan struct{})
	go func() {
		_ = srv.Shutdown(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Shutdown() returned while a session was still reserved")
	case <-time.After(50 * time.Millisecond):
	}

	srv.release(nil)
	if srv.reserve() {
		t.Error("reserve() = true after shutdown began")
	}
	srv.wg.Done()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown() did not return after the session ended")
	}
}

func TestBridge_ActivateAfterShutdownRefused(t *testing.T) {
	srv := New(Config{}, dryRunDevice())
	if !srv.activate(nil) {
		t.Error("activate() = false before shutdown")
	}
	srv.cancel()
	if srv.activate(nil) {
		t.Error("activate() = true after shutdown began")
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{CommandsPerSecond: 5}.withDefaults()
	if cfg.Listen != DefaultListen || cfg.Path != DefaultPath || cfg.Instance != DefaultInstance {
		t.Errorf("withDefaults() = %+v", cfg)
	}
	if cfg.DeviceTimeout != DefaultDeviceTimeout {
		t.Errorf("DeviceTimeout = %s", cfg.DeviceTimeout)
	}
	if cfg.Burst != 1 {
		t.Errorf("Burst = %d, want 1", cfg.Burst)
	}
}
