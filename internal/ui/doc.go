// Package ui renders the whallera CLI's terminal output.
//
// Output follows a "run once and exit" pattern built on Lipgloss: a Header
// banner for long-running commands, then a Result box whose colour follows
// the device status (green OK, orange WAIT, red otherwise). Destructive
// commands ask for a yes/no Confirm first.
//
// RunWithSpinner shows a Bubble Tea spinner while a task such as a script
// run is polling the device. When stdout is not a terminal, commands use
// RunPlain and a plain Printer instead so output stays script friendly.
//
// zap logging is silent unless WHALLERA_LOG_LEVEL or --log-level enables
// it, so the curated output here is all the user sees by default.
package ui
