package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/whallera/whallera/internal/device"
	"github.com/whallera/whallera/internal/protocol"
	"github.com/whallera/whallera/internal/ui"
)

// errCancelled is returned when the user declines a confirmation. It exits
// 0: nothing was sent.
var errCancelled = errors.New("cancelled")

func parsePhrase(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid phrase %q: must be a number between 0 and 4294967295", s)
	}
	return uint32(v), nil
}

func newReadBankCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read-bank BANK",
		Short: "Read the content of a bank",
		Long: `Read the content of a storage bank.

BANK is a decimal id or 0x-prefixed hex. With --no-interactive only the
content is printed, so it can be piped.`,
		Example: `  whallera read-bank 3
  whallera read-bank 0x1f --no-interactive > bank.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := device.ParseBankID(args[0])
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				result, err := c.ReadBank(ctx, bank)
				if err != nil {
					return err
				}

				if a.format == formatText && !a.interactive() {
					_, _ = fmt.Fprintln(a.out, result.Content)
					if !result.OK() {
						_, _ = fmt.Fprintln(a.errOut, result.Status.Description())
						return &statusError{cmd: protocol.CmdReadBank, status: result.Status}
					}
					return nil
				}

				return a.report(fmt.Sprintf("Bank %d", bank), result.Reply,
					ui.Detail{Key: "Bank", Value: strconv.Itoa(int(bank))},
					ui.Detail{Key: "Length", Value: strconv.Itoa(len(result.Content))},
					ui.Detail{Key: "Content", Value: result.Content},
				)
			})
		},
	}
}

func newWriteBankCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "write-bank BANK CONTENT",
		Short: "Write ASCII content to a bank (use - for stdin)",
		Example: `  whallera write-bank 3 "hello"
  cat script.zen | whallera write-bank 1 - --no-interactive`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := device.ParseBankID(args[0])
			if err != nil {
				return err
			}

			content := args[1]
			if content == "-" {
				if a.cfg.IsInteractive() {
					return fmt.Errorf("reading content from stdin needs --no-interactive, since stdin also answers the confirmation")
				}
				data, err := io.ReadAll(a.in)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				content = string(data)
			}
			if err := device.ValidateBankContent(content); err != nil {
				return err
			}

			if !a.confirm(ui.WriteBankConfirmation(bank, len(content))) {
				return errCancelled
			}

			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				reply, err := c.WriteBank(ctx, bank, content)
				if err != nil {
					return err
				}
				return a.report(fmt.Sprintf("Write bank %d", bank), reply,
					ui.Detail{Key: "Bank", Value: strconv.Itoa(int(bank))},
					ui.Detail{Key: "Length", Value: strconv.Itoa(len(content))},
				)
			})
		},
	}
}

func newDeviceLockedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "device-locked",
		Short: "Check whether the device is locked (exit 1 when locked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				reply, err := c.DeviceLocked(ctx)
				if err != nil {
					return err
				}
				return a.report("Lock state", reply)
			})
		},
	}
}

func newDeviceLockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "device-lock",
		Short: "Lock the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				reply, err := c.DeviceLock(ctx)
				if err != nil {
					return err
				}
				return a.report("Device lock", reply)
			})
		},
	}
}

func newDeviceUnlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "device-unlock PHRASE",
		Short: "Unlock the device with its numeric phrase",
		Long: `Unlock the device with its numeric phrase.

Each wrong phrase uses up an attempt. When none remain the device wipes
itself, so the remaining count is printed after a failed attempt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase, err := parsePhrase(args[0])
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				result, err := c.DeviceUnlock(ctx, phrase)
				if err != nil {
					return err
				}

				var details []ui.Detail
				if result.Status == protocol.StatusDeviceLocked {
					details = append(details, ui.Detail{
						Key:   "Remaining",
						Value: fmt.Sprintf("%d attempts remaining before factory reset", result.RemainingAttempts),
					})
				}
				return a.report("Device unlock", result.Reply, details...)
			})
		},
	}
}

func newSetPhraseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-phrase PHRASE",
		Short: "Set the numeric unlock phrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase, err := parsePhrase(args[0])
			if err != nil {
				return err
			}
			if !a.confirm(ui.SetPhraseConfirmation()) {
				return errCancelled
			}
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				reply, err := c.SetPhrase(ctx, phrase)
				if err != nil {
					return err
				}
				return a.report("Set phrase", reply)
			})
		},
	}
}

func newOperatingModeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "operating-mode MODE",
		Short:     "Change operating mode: DEVELOPMENT | PROGRAMMING | PRODUCTION",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"DEVELOPMENT", "PROGRAMMING", "PRODUCTION"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := protocol.ParseOperatingMode(args[0])
			if err != nil {
				return err
			}
			if !a.confirm(ui.OperatingModeConfirmation(mode.String())) {
				return errCancelled
			}
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				reply, err := c.SetOperatingMode(ctx, mode)
				if err != nil {
					return err
				}
				return a.report("Operating mode", reply, ui.Detail{Key: "Mode", Value: mode.String()})
			})
		},
	}
}

func newFactoryResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "factory-reset",
		Short: "Erase every bank and the unlock phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.confirm(ui.FactoryResetConfirmation()) {
				return errCancelled
			}
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				reply, err := c.FactoryReset(ctx)
				if err != nil {
					return err
				}
				return a.report("Factory reset", reply)
			})
		},
	}
}

func newLedConfSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "led-conf-set CONFIG",
		Short:     "Configure the LED: ALWAYS_ON | ALWAYS_OFF | BLINK_ON_SCRIPT | BLINK_ON_SERIAL",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"ALWAYS_ON", "ALWAYS_OFF", "BLINK_ON_SCRIPT", "BLINK_ON_SERIAL"},
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := protocol.ParseLedConfig(args[0])
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				reply, err := c.SetLedConfig(ctx, conf)
				if err != nil {
					return err
				}
				return a.report("LED configuration", reply, ui.Detail{Key: "LED", Value: conf.String()})
			})
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the device id and firmware versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *device.Client) error {
				info, err := c.Version(ctx)
				if err != nil {
					return err
				}
				return a.report("Device version", info.Reply,
					ui.Detail{Key: "UDID", Value: info.UDIDString()},
					ui.Detail{Key: "Firmware", Value: info.FirmwareString()},
					ui.Detail{Key: "Zenroom", Value: info.ZenroomString()},
				)
			})
		},
	}
}
