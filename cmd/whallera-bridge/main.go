// Whallera-bridge shares a locally attached MP1 device over WebSocket.
//
// It owns the serial port and relays one binary request frame per message to
// the device, answering with the device's raw response. One client session
// is served at a time. The bridge can advertise itself over mDNS so that
// `whallera --mdns discover` finds it, and exposes Prometheus metrics on
// /metrics.
//
// Usage:
//
//	whallera-bridge serve [flags]
//
// See 'whallera-bridge serve --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/whallera/whallera/internal/bridge"
	"github.com/whallera/whallera/internal/config"
	"github.com/whallera/whallera/internal/discovery"
	"github.com/whallera/whallera/internal/logging"
	"github.com/whallera/whallera/internal/transport"
	"github.com/whallera/whallera/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "whallera-bridge",
	Short: "Whallera MP1 WebSocket bridge",
	Long: `Share a locally attached Whallera MP1 device over WebSocket.

Clients connect with 'whallera --interface ws://host:8765/mp1'. Only one
session owns the device at a time; others are refused until it ends.`,
	Version:      version.Full(),
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	configPath string
	iface      string
	listen     string
	path       string
	advertise  bool
	instance   string
	rateLimit  float64
	burst      int
	timeout    time.Duration
	logLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the device and serve WebSocket sessions",
	Example: `  # Serve the first USB device found on the default port
  whallera-bridge serve

  # Serve a specific port and advertise over mDNS
  whallera-bridge serve --interface /dev/ttyACM0 --advertise

  # Limit each client to 5 commands per second
  whallera-bridge serve --rate 5 --burst 10 --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/whallera/config.yaml)")
	f.StringVarP(&iface, "interface", "i", "", "Serial port of the device (default: first discovered)")
	f.StringVar(&listen, "listen", "", "Listen address (default from config, :8765)")
	f.StringVar(&path, "path", "", "WebSocket path (default from config, /mp1)")
	f.BoolVar(&advertise, "advertise", false, "Advertise the bridge over mDNS")
	f.StringVar(&instance, "instance", "", "mDNS instance name (default from config, whallera)")
	f.Float64Var(&rateLimit, "rate", 0, "Commands per second per session, 0 for no limit (default from config)")
	f.IntVar(&burst, "burst", 0, "Rate limiter burst size (default from config)")
	f.DurationVar(&timeout, "timeout", 0, "Device response timeout (default from config, 1s)")
	f.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config, then $WHALLERA_LOG_LEVEL, then info)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("interface") {
		cfg.Interface = iface
	}
	if flags.Changed("listen") {
		cfg.Bridge.Listen = listen
	}
	if flags.Changed("path") {
		cfg.Bridge.Path = path
	}
	if flags.Changed("advertise") {
		cfg.Bridge.Advertise = advertise
	}
	if flags.Changed("instance") {
		cfg.Bridge.Instance = instance
	}
	if flags.Changed("rate") {
		cfg.Bridge.CommandsPerSecond = rateLimit
	}
	if flags.Changed("burst") {
		cfg.Bridge.Burst = burst
	}
	if flags.Changed("timeout") {
		cfg.TimeoutMS = int(timeout / time.Millisecond)
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	cfg.Logging.Level = bridgeLogLevel(cfg.Logging.Level)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.InitializeWithOptions(logging.Options{
		Level: cfg.Logging.Level,
		File: logging.FileConfig{
			Filename:   cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
		Stderr: true,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := cfg.Interface
	if endpoint == "" {
		// Only local serial ports: a bridge never relays another bridge
		ports, err := discovery.ListSerial(discovery.SerialFilter{
			VID:     cfg.Discovery.USBVID,
			PID:     cfg.Discovery.USBPID,
			USBOnly: true,
		})
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			return fmt.Errorf("no device found: connect your Whallera or specify it with --interface")
		}
		endpoint = ports[0].URL()
	}

	device, err := transport.Open(ctx, endpoint, transport.Options{
		BaudRate:     cfg.BaudRate,
		PollInterval: cfg.PollInterval(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = device.Close() }()

	logging.Info("Device opened",
		zap.String("device", device.String()),
		zap.String("version", version.Version),
	)

	srv := bridge.New(bridge.Config{
		Listen:            cfg.Bridge.Listen,
		Path:              cfg.Bridge.Path,
		DeviceTimeout:     cfg.Timeout(),
		CommandsPerSecond: cfg.Bridge.CommandsPerSecond,
		Burst:             cfg.Bridge.Burst,
		Advertise:         cfg.Bridge.Advertise,
		Instance:          cfg.Bridge.Instance,
	}, device)

	return srv.Start(ctx)
}

// bridgeLogLevel picks the daemon's log level. Unlike the CLI the bridge is
// never silent: with no level configured it honours WHALLERA_LOG_LEVEL and
// otherwise logs at info.
func bridgeLogLevel(configured string) string {
	if configured != "" {
		return configured
	}
	return logging.LevelFromEnv("info")
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("whallera-bridge %s\n", version.Full())
	},
}
