package device

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/whallera/whallera/internal/protocol"
)

// Response payload layout sizes
const (
	bankLengthSize  = 2
	udidSize        = 12
	fwVersionSize   = 3
	zenVersionSize  = 3
	versionSize     = udidSize + fwVersionSize + zenVersionSize
	attemptsSize    = 1
	exitCodeSize    = 1
	scriptBankCount = 5

	// MaxBankContent is the largest content the 16-bit length prefix can carry
	MaxBankContent = 0xFFFF
)

// Exchange is the raw traffic of one command, kept for diagnostics and tests.
type Exchange struct {
	Command  protocol.Command
	Request  []byte        // Request frame as written
	Response []byte        // Response frame as read
	Attempts int           // Number of times the request was sent (busy retries included)
	Duration time.Duration // Wall time from first write to last decoded reply
}

// Reply is embedded in every result: the device status plus the raw exchange.
// A non-OK Status is data, not an error.
type Reply struct {
	Status   protocol.Status
	Exchange Exchange
}

// OK reports whether the device answered StatusOK
func (r Reply) OK() bool { return r.Status == protocol.StatusOK }

// BankContent is the result of ReadBank
type BankContent struct {
	Reply
	Bank    uint8
	Content string
}

// UnlockResult is the result of DeviceUnlock
type UnlockResult struct {
	Reply

	// RemainingAttempts counts wrong phrases left before the device wipes itself
	RemainingAttempts uint8
}

// VersionInfo is the result of Version
type VersionInfo struct {
	Reply
	UDID     [udidSize]byte
	Firmware [fwVersionSize]byte
	Zenroom  [zenVersionSize]byte
}

// UDIDString returns the unique device id as lower-case hex
func (v VersionInfo) UDIDString() string {
	return hex.EncodeToString(v.UDID[:])
}

// FirmwareString formats the firmware version as major.minor.patch
func (v VersionInfo) FirmwareString() string {
	return semver(v.Firmware)
}

// ZenroomString formats the script engine version as major.minor.patch
func (v VersionInfo) ZenroomString() string {
	return semver(v.Zenroom)
}

func semver(b [3]byte) string {
	return fmt.Sprintf("%d.%d.%d", b[0], b[1], b[2])
}

// ScriptJob names the five banks a script run uses.
type ScriptJob struct {
	Script uint8 // bank holding the script source
	Keys   uint8 // bank holding key material
	Data   uint8 // bank holding input data
	Stdout uint8 // bank receiving standard output
	Stderr uint8 // bank receiving standard error
}

// Payload encodes the job as the five-byte EXEC_SCRIPT payload
func (j ScriptJob) Payload() []byte {
	return []byte{j.Script, j.Keys, j.Data, j.Stdout, j.Stderr}
}

// ScriptJobFromIDs builds a job from bank ids in wire order
func ScriptJobFromIDs(ids []uint8) (ScriptJob, error) {
	if len(ids) != scriptBankCount {
		return ScriptJob{}, fmt.Errorf("script job needs %d bank ids, got %d", scriptBankCount, len(ids))
	}
	return ScriptJob{Script: ids[0], Keys: ids[1], Data: ids[2], Stdout: ids[3], Stderr: ids[4]}, nil
}

// ScriptStatus is the result of PollScriptStatus
type ScriptStatus struct {
	Reply

	// ExitCode is the script engine's exit code: protocol.ScriptExitOK,
	// protocol.ScriptExitError, or another raw value. Zero while pending.
	ExitCode uint8
}

// Pending reports whether the job has not finished yet
func (s ScriptStatus) Pending() bool { return s.Status == protocol.StatusWait }

// Succeeded reports a completed job whose script exited cleanly
func (s ScriptStatus) Succeeded() bool {
	return s.Status == protocol.StatusOK && s.ExitCode == protocol.ScriptExitOK
}
