package protocol

import (
	"fmt"
	"strings"
)

// Command is a request opcode.
type Command byte

// Command opcodes
const (
	CmdReadBank         Command = 0x10
	CmdWriteBank        Command = 0x11
	CmdDeviceLocked     Command = 0x20
	CmdDeviceLock       Command = 0x21
	CmdDeviceUnlock     Command = 0x22
	CmdSetPhrase        Command = 0x23
	CmdOperatingMode    Command = 0x2E
	CmdFactoryReset     Command = 0x2F
	CmdLedConfSet       Command = 0x30
	CmdVersion          Command = 0x3F
	CmdExecScript       Command = 0x40
	CmdExecScriptStatus Command = 0x41
)

// Commands lists every opcode the device understands, in opcode order.
var Commands = []Command{
	CmdReadBank,
	CmdWriteBank,
	CmdDeviceLocked,
	CmdDeviceLock,
	CmdDeviceUnlock,
	CmdSetPhrase,
	CmdOperatingMode,
	CmdFactoryReset,
	CmdLedConfSet,
	CmdVersion,
	CmdExecScript,
	CmdExecScriptStatus,
}

// String returns the wire name of the command
func (c Command) String() string {
	switch c {
	case CmdReadBank:
		return "READ_BANK"
	case CmdWriteBank:
		return "WRITE_BANK"
	case CmdDeviceLocked:
		return "DEVICE_LOCKED"
	case CmdDeviceLock:
		return "DEVICE_LOCK"
	case CmdDeviceUnlock:
		return "DEVICE_UNLOCK"
	case CmdSetPhrase:
		return "SET_PHRASE"
	case CmdOperatingMode:
		return "OPERATING_MODE"
	case CmdFactoryReset:
		return "FACTORY_RESET"
	case CmdLedConfSet:
		return "LED_CONF_SET"
	case CmdVersion:
		return "VERSION"
	case CmdExecScript:
		return "EXEC_SCRIPT"
	case CmdExecScriptStatus:
		return "EXEC_SCRIPT_STATUS"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(c))
	}
}

// Known reports whether c is a recognised opcode
func (c Command) Known() bool {
	for _, known := range Commands {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the trailing byte of every response.
type Status byte

// Status codes reported by the device
const (
	StatusOK            Status = 0x00
	StatusChecksumError Status = 0x01
	StatusDeviceLocked  Status = 0x11
	StatusBankLocked    Status = 0x12
	StatusBankOverflow  Status = 0x20
	StatusWait          Status = 0x33
)

// String returns the status name, or Unknown(0xNN) for unrecognised bytes.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusChecksumError:
		return "CHECKSUM_ERROR"
	case StatusDeviceLocked:
		return "DEVICE_LOCKED"
	case StatusBankLocked:
		return "BANK_LOCKED"
	case StatusBankOverflow:
		return "BANK_OVERFLOW"
	case StatusWait:
		return "WAIT"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(s))
	}
}

// Known reports whether s is one of the enumerated status codes
func (s Status) Known() bool {
	switch s {
	case StatusOK, StatusChecksumError, StatusDeviceLocked, StatusBankLocked, StatusBankOverflow, StatusWait:
		return true
	default:
		return false
	}
}

// OK reports whether s is StatusOK
func (s Status) OK() bool { return s == StatusOK }

// IsTransient reports whether the device asked the host to come back later.
func (s Status) IsTransient() bool { return s == StatusWait }

// Description returns a human-readable sentence for CLI output
func (s Status) Description() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusChecksumError:
		return "Checksum Error"
	case StatusDeviceLocked:
		return "Device Locked"
	case StatusBankLocked:
		return "Bank Locked"
	case StatusBankOverflow:
		return "Bank Overflow"
	case StatusWait:
		return "Device busy, try again"
	default:
		return fmt.Sprintf("Unknown Error: %d", byte(s))
	}
}

// OperatingMode selects the device life-cycle mode.
type OperatingMode byte

// Operating modes
const (
	ModeDevelopment OperatingMode = 0x00
	ModeProgramming OperatingMode = 0xFE
	ModeProduction  OperatingMode = 0xFF
)

func (m OperatingMode) String() string {
	switch m {
	case ModeDevelopment:
		return "DEVELOPMENT"
	case ModeProgramming:
		return "PROGRAMMING"
	case ModeProduction:
		return "PRODUCTION"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(m))
	}
}

// ParseOperatingMode converts a CLI spelling into an OperatingMode.
func ParseOperatingMode(s string) (OperatingMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEVELOPMENT":
		return ModeDevelopment, nil
	case "PROGRAMMING":
		return ModeProgramming, nil
	case "PRODUCTION":
		return ModeProduction, nil
	default:
		return 0, fmt.Errorf("%q parameter not allowed (use DEVELOPMENT, PROGRAMMING or PRODUCTION)", s)
	}
}

// LedConfig selects the indicator behaviour.
type LedConfig byte

// Indicator configurations
const (
	LedAlwaysOff     LedConfig = 0x00
	LedAlwaysOn      LedConfig = 0x01
	LedBlinkOnScript LedConfig = 0x02
	LedBlinkOnSerial LedConfig = 0x03
)

func (l LedConfig) String() string {
	switch l {
	case LedAlwaysOff:
		return "ALWAYS_OFF"
	case LedAlwaysOn:
		return "ALWAYS_ON"
	case LedBlinkOnScript:
		return "BLINK_ON_SCRIPT"
	case LedBlinkOnSerial:
		return "BLINK_ON_SERIAL"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(l))
	}
}

// ParseLedConfig converts a CLI spelling into a LedConfig.
// BLINK_ON_ZENCODE is accepted as an older name for BLINK_ON_SCRIPT.
func ParseLedConfig(s string) (LedConfig, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ALWAYS_OFF":
		return LedAlwaysOff, nil
	case "ALWAYS_ON":
		return LedAlwaysOn, nil
	case "BLINK_ON_SCRIPT", "BLINK_ON_ZENCODE":
		return LedBlinkOnScript, nil
	case "BLINK_ON_SERIAL":
		return LedBlinkOnSerial, nil
	default:
		return 0, fmt.Errorf("%q parameter not allowed (use ALWAYS_OFF, ALWAYS_ON, BLINK_ON_SCRIPT or BLINK_ON_SERIAL)", s)
	}
}

// Script engine exit codes
const (
	ScriptExitOK    = 0x00
	ScriptExitError = 0x01
)
