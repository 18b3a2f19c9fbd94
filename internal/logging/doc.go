// Package logging provides structured logging for the whallera tools.
//
// This package wraps a global zap logger with convenience functions. The CLI
// is silent by default; set WHALLERA_LOG_LEVEL or pass --log-level to see
// what goes over the wire.
//
// # Log Levels
//
//   - Debug: TX/RX frame dumps, read polls, retries
//   - Info: Sessions opened and closed, bridge start-up
//   - Warn: Busy device retries, rejected bridge requests
//   - Error: Transport failures
//
// # Frame Logging
//
//	logging.LogFrame(logger, "tx", "/dev/ttyACM0", frame)
//
// produces a debug entry with "AA 10 00 55 EF" style hex and an ASCII column.
//
// # Configuration
//
//	err := logging.InitializeWithOptions(logging.Options{
//	    Level: "debug",
//	    File:  logging.FileConfig{Filename: "/var/log/whallera.log", MaxSizeMB: 10},
//	})
//	defer logging.Sync()
//
// The file sink is rotated by lumberjack and written as JSON.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
