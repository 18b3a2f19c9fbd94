package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/whallera/whallera/internal/config"
	"github.com/whallera/whallera/internal/device"
	"github.com/whallera/whallera/internal/discovery"
	"github.com/whallera/whallera/internal/logging"
	"github.com/whallera/whallera/internal/transport"
	"github.com/whallera/whallera/internal/ui"
	"github.com/whallera/whallera/internal/version"
)

// Output formats
const (
	formatText = "text"
	formatJSON = "json"
)

// openTransport is replaced in tests
var openTransport = transport.Open

// app holds the resolved settings shared by every subcommand
type app struct {
	// Flag values
	configPath    string
	iface         string
	timeout       time.Duration
	noInteractive bool
	logLevel      string
	format        string
	busyRetries   int

	cfg *config.Config

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "whallera",
		Short: "Whallera MP1 device client",
		Long: `Command-line client for the Whallera MP1 security device.

Each subcommand sends one command to the device and prints its status.
The device is found automatically unless --interface names a serial port,
a bridge URL (ws://host:8765/mp1), or mem://name for a dry-run device.`,
		Version:           version.Full(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	// Disable automatic completion command generation
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/whallera/config.yaml)")
	flags.StringVarP(&a.iface, "interface", "i", "", "Serial port, bridge URL or mem:// name (skips discovery)")
	flags.DurationVar(&a.timeout, "timeout", 0, "Response timeout (default from config, 1s)")
	flags.BoolVar(&a.noInteractive, "no-interactive", false, "Don't ask for confirmation and print plain output")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default silent)")
	flags.StringVar(&a.format, "format", formatText, "Output format: text or json")
	flags.IntVar(&a.busyRetries, "busy-retries", 0, "Resend a command up to N times while the device answers WAIT")

	root.AddCommand(
		newReadBankCmd(a),
		newWriteBankCmd(a),
		newDeviceLockedCmd(a),
		newDeviceLockCmd(a),
		newDeviceUnlockCmd(a),
		newSetPhraseCmd(a),
		newOperatingModeCmd(a),
		newFactoryResetCmd(a),
		newLedConfSetCmd(a),
		newVersionCmd(a),
		newExecScriptCmd(a),
		newPollScriptCmd(a),
		newRunScriptCmd(a),
		newDiscoverCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the config file, applies flag overrides, and starts logging
func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.in = cmd.InOrStdin()
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()

	if a.format != formatText && a.format != formatJSON {
		return fmt.Errorf("unknown --format %q (use text or json)", a.format)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("interface") {
		cfg.Interface = a.iface
	}
	if flags.Changed("timeout") {
		cfg.TimeoutMS = int(a.timeout / time.Millisecond)
	}
	if flags.Changed("no-interactive") {
		interactive := !a.noInteractive
		cfg.Interactive = &interactive
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("busy-retries") {
		cfg.BusyRetry.MaxRetries = a.busyRetries
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	return logging.InitializeWithOptions(logging.Options{
		Level: cfg.Logging.Level,
		File: logging.FileConfig{
			Filename:   cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
		Stderr: true,
	})
}

// interactive reports whether to prompt and render styled output. Output
// that is not a terminal is never styled.
func (a *app) interactive() bool {
	if !a.cfg.IsInteractive() {
		return false
	}
	if f, ok := a.out.(*os.File); ok {
		return ui.IsTerminal(f)
	}
	return true
}

// confirm asks before a destructive command. Non-interactive runs proceed.
func (a *app) confirm(c ui.Confirmation) bool {
	if !a.cfg.IsInteractive() {
		return true
	}
	return ui.Confirm(a.in, a.out, c)
}

func (a *app) printer() *ui.Printer {
	return ui.NewPrinter(a.out, !a.interactive())
}

func (a *app) discoveryOptions() discovery.Options {
	return discovery.Options{
		Serial: discovery.SerialFilter{
			VID: a.cfg.Discovery.USBVID,
			PID: a.cfg.Discovery.USBPID,
		},
		MDNS:        a.cfg.Discovery.MDNS,
		MDNSTimeout: a.cfg.MDNSTimeout(),
	}
}

// endpoint returns the configured interface, or the first discovered device
func (a *app) endpoint(ctx context.Context) (string, error) {
	if a.cfg.Interface != "" {
		return a.cfg.Interface, nil
	}
	ep, err := discovery.First(ctx, a.discoveryOptions())
	if err != nil {
		return "", err
	}
	logging.Info("Using discovered device", zap.String("endpoint", ep.String()))
	return ep.URL(), nil
}

// openClient connects to the device. The caller closes the client.
func (a *app) openClient(ctx context.Context) (*device.Client, error) {
	endpoint, err := a.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	t, err := openTransport(ctx, endpoint, transport.Options{
		BaudRate:     a.cfg.BaudRate,
		PollInterval: a.cfg.PollInterval(),
	})
	if err != nil {
		return nil, err
	}

	opts := []device.Option{
		device.WithTimeout(a.cfg.Timeout()),
		device.WithLogger(logging.GetLogger().With(zap.String("endpoint", t.String()))),
	}
	if a.cfg.BusyRetry.MaxRetries > 0 {
		initial, max := a.cfg.BusyRetry.Delays()
		opts = append(opts, device.WithBusyRetry(a.cfg.BusyRetry.MaxRetries, initial, max))
	}
	return device.New(t, opts...), nil
}

// withClient opens the device, runs fn, and closes the device
func (a *app) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *device.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := a.openClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	return fn(ctx, client)
}
