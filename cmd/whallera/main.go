// Whallera is the command-line client for the Whallera MP1 security device.
//
// It talks to the device over a USB serial line, or through a whallera-bridge
// over WebSocket, and exposes one subcommand per device operation: bank
// storage, locking, operating mode, LED configuration, version, and script
// execution.
//
// Usage:
//
//	whallera [command] [flags]
//
// Without --interface the first discovered device is used.
// Exit status is 0 when the device answers OK, 1 for any other status or
// usage error, and 2 when the exchange itself failed (timeout, framing,
// checksum, transport).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/whallera/whallera/internal/logging"
	"github.com/whallera/whallera/internal/protocol"
	"github.com/whallera/whallera/internal/ui"
)

// Process exit codes
const (
	exitOK            = 0
	exitStatus        = 1
	exitProtocolError = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	logging.Sync()
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode maps a command error to the process exit status, printing
// anything not already shown to the user.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}

	if errors.Is(err, errCancelled) {
		_, _ = fmt.Fprintln(stderr, "Cancelled, nothing was sent")
		return exitOK
	}

	var se *statusError
	if errors.As(err, &se) {
		// Already rendered with the result
		return exitStatus
	}

	if protocol.IsProtocolError(err) {
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", protocol.ShortErrorMessage(err))
		for _, hint := range protocol.TroubleshootingHint(err) {
			_, _ = fmt.Fprintf(stderr, "  - %s\n", hint)
		}
		return exitProtocolError
	}

	if errors.Is(err, ui.ErrInterrupted) || errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintln(stderr, "Interrupted")
		return exitStatus
	}

	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitStatus
}
