// Package bridge exposes a locally attached MP1 device over WebSocket.
//
// A client connects to the bridge path (default /mp1) and sends one request
// frame per binary message. The bridge checks the frame, writes it to the
// device, and answers with one binary message holding the raw device reply.
// An empty message means the device did not answer within the timeout.
//
// Only one session owns the device at a time; other clients receive HTTP 409
// until it disconnects. Text messages and malformed frames close the session
// with a policy close code and never reach the device.
//
// The server also serves /healthz and Prometheus metrics on /metrics, and can
// advertise itself over mDNS so `whallera discover` finds it:
//
//	dev, _ := transport.OpenSerial("/dev/ttyACM0", transport.DefaultOptions())
//	srv := bridge.New(bridge.Config{Listen: ":8765", Advertise: true}, dev)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package bridge
