package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CurrentVersion is the config file schema version
const CurrentVersion = 1

// Defaults applied by Normalize
const (
	DefaultBaudRate       = 115200
	DefaultTimeoutMS      = 1000
	DefaultPollIntervalMS = 10

	DefaultBusyInitialMS = 50
	DefaultBusyMaxMS     = 1000

	DefaultMDNSTimeoutMS = 3000

	DefaultBridgeListen   = ":8765"
	DefaultBridgePath     = "/mp1"
	DefaultBridgeInstance = "whallera"
	DefaultBridgeRate     = 20.0
	DefaultBridgeBurst    = 5

	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)

// Config is the whallera configuration file
type Config struct {
	Version int `yaml:"version"`

	// Interface is the default device: a serial path, ws:// URL or mem:// name.
	// Empty means discover one.
	Interface      string `yaml:"interface,omitempty"`
	BaudRate       int    `yaml:"baud_rate"`
	TimeoutMS      int    `yaml:"timeout_ms"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`

	// Interactive asks for confirmation before destructive commands
	Interactive *bool `yaml:"interactive,omitempty"`

	BusyRetry BusyRetryConfig `yaml:"busy_retry"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BusyRetryConfig controls re-sending requests the device answers with WAIT.
// MaxRetries 0 disables it.
type BusyRetryConfig struct {
	MaxRetries     int `yaml:"max_retries"`
	InitialDelayMS int `yaml:"initial_delay_ms"`
	MaxDelayMS     int `yaml:"max_delay_ms"`
}

// DiscoveryConfig narrows automatic device selection
type DiscoveryConfig struct {
	USBVID        string `yaml:"usb_vid,omitempty"` // e.g. "1209"
	USBPID        string `yaml:"usb_pid,omitempty"` // e.g. "a1b2"
	MDNS          bool   `yaml:"mdns"`              // also browse for bridges
	MDNSTimeoutMS int    `yaml:"mdns_timeout_ms"`   // browse duration
}

// BridgeConfig configures whallera-bridge
type BridgeConfig struct {
	Listen            string  `yaml:"listen"`
	Path              string  `yaml:"path"`
	Advertise         bool    `yaml:"advertise"`
	Instance          string  `yaml:"instance"`
	CommandsPerSecond float64 `yaml:"commands_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig mirrors logging.Options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// New returns a config with every default filled in
func New() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills zero values with defaults. It never fails; use Validate
// to reject values that are set but wrong.
func (c *Config) Normalize() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = DefaultTimeoutMS
	}
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = DefaultPollIntervalMS
	}
	if c.Interactive == nil {
		interactive := true
		c.Interactive = &interactive
	}

	if c.BusyRetry.InitialDelayMS == 0 {
		c.BusyRetry.InitialDelayMS = DefaultBusyInitialMS
	}
	if c.BusyRetry.MaxDelayMS == 0 {
		c.BusyRetry.MaxDelayMS = DefaultBusyMaxMS
	}

	if c.Discovery.MDNSTimeoutMS == 0 {
		c.Discovery.MDNSTimeoutMS = DefaultMDNSTimeoutMS
	}
	c.Discovery.USBVID = strings.ToLower(c.Discovery.USBVID)
	c.Discovery.USBPID = strings.ToLower(c.Discovery.USBPID)

	if c.Bridge.Listen == "" {
		c.Bridge.Listen = DefaultBridgeListen
	}
	if c.Bridge.Path == "" {
		c.Bridge.Path = DefaultBridgePath
	}
	if !strings.HasPrefix(c.Bridge.Path, "/") {
		c.Bridge.Path = "/" + c.Bridge.Path
	}
	if c.Bridge.Instance == "" {
		c.Bridge.Instance = DefaultBridgeInstance
	}
	if c.Bridge.CommandsPerSecond == 0 {
		c.Bridge.CommandsPerSecond = DefaultBridgeRate
	}
	if c.Bridge.Burst == 0 {
		c.Bridge.Burst = DefaultBridgeBurst
	}

	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var errs []error

	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}
	if c.BaudRate < 0 {
		errs = append(errs, fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate))
	}
	if c.TimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMS))
	}
	if c.PollIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMS))
	}
	if c.PollIntervalMS > 0 && c.TimeoutMS > 0 && c.PollIntervalMS > c.TimeoutMS {
		errs = append(errs, fmt.Errorf("poll_interval_ms (%d) exceeds timeout_ms (%d)", c.PollIntervalMS, c.TimeoutMS))
	}

	if c.BusyRetry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("busy_retry.max_retries must not be negative, got %d", c.BusyRetry.MaxRetries))
	}
	if c.BusyRetry.MaxDelayMS > 0 && c.BusyRetry.InitialDelayMS > c.BusyRetry.MaxDelayMS {
		errs = append(errs, fmt.Errorf("busy_retry.initial_delay_ms (%d) exceeds max_delay_ms (%d)",
			c.BusyRetry.InitialDelayMS, c.BusyRetry.MaxDelayMS))
	}

	for name, id := range map[string]string{"usb_vid": c.Discovery.USBVID, "usb_pid": c.Discovery.USBPID} {
		if id != "" && !isHex4(id) {
			errs = append(errs, fmt.Errorf("discovery.%s must be four hex digits, got %q", name, id))
		}
	}

	if c.Bridge.CommandsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("bridge.commands_per_second must not be negative"))
	}
	if c.Bridge.Burst < 0 {
		errs = append(errs, fmt.Errorf("bridge.burst must not be negative"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// IsInteractive reports whether destructive commands need confirmation
func (c *Config) IsInteractive() bool {
	return c.Interactive == nil || *c.Interactive
}

// Timeout returns TimeoutMS as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// PollInterval returns PollIntervalMS as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// MDNSTimeout returns the bridge browse duration
func (c *Config) MDNSTimeout() time.Duration {
	return time.Duration(c.Discovery.MDNSTimeoutMS) * time.Millisecond
}

// Delays returns the busy retry delays as durations
func (b BusyRetryConfig) Delays() (initial, max time.Duration) {
	return time.Duration(b.InitialDelayMS) * time.Millisecond, time.Duration(b.MaxDelayMS) * time.Millisecond
}

func isHex4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
