package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/whallera/whallera/internal/logging"
	"github.com/whallera/whallera/internal/protocol"
	"github.com/whallera/whallera/internal/transport"
)

const (
	// DefaultTimeout is the default read window for a response
	DefaultTimeout = 1 * time.Second
)

// ErrInvalidContent is returned by WriteBank for content the bank cannot hold
var ErrInvalidContent = errors.New("invalid bank content")

// Client runs MP1 commands over a transport.
//
// Every method sends one command and waits for its response. Device status
// codes come back inside the result; only framing, checksum, timeout and
// transport failures are returned as errors.
type Client struct {
	// transport is the byte channel to the device; the client owns it
	transport transport.Transport

	// timeout is the read window applied to every response
	timeout time.Duration

	// observer, if set, sees every exchange
	observer Observer

	// busy is the WAIT retry policy (disabled by default)
	busy BusyRetry

	logger *zap.Logger

	// mu keeps exactly one command in flight
	mu sync.Mutex
}

// New creates a client that owns t.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		timeout:   DefaultTimeout,
		logger:    logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transport returns the underlying transport
func (c *Client) Transport() transport.Transport {
	return c.transport
}

// Timeout returns the configured read window
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Close closes the underlying transport
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport.Close()
}

// exchange sends cmd with payload and returns the decoded response.
func (c *Client) exchange(ctx context.Context, cmd protocol.Command, payload []byte) (*protocol.Response, Exchange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ex := Exchange{
		Command: cmd,
		Request: protocol.Encode(cmd, payload),
	}
	start := time.Now()

	// WAIT on EXEC_SCRIPT_STATUS means the job is still running; RunScript paces those polls
	var delays backoff.BackOff
	if c.busy.Enabled() && cmd != protocol.CmdExecScriptStatus {
		delays = newBackOff(c.busy.InitialDelay, c.busy.MaxDelay, c.busy.MaxRetries)
	}

	for {
		resp, err := c.roundTrip(ctx, &ex)
		ex.Duration = time.Since(start)
		if err != nil {
			return nil, ex, err
		}

		if resp.Status != protocol.StatusWait || delays == nil {
			c.notify(ex)
			return resp, ex, nil
		}

		next := delays.NextBackOff()
		if next == backoff.Stop {
			c.logger.Warn("Device still busy, giving up",
				zap.Stringer("command", cmd),
				zap.Int("attempts", ex.Attempts),
			)
			c.notify(ex)
			return resp, ex, nil
		}

		c.logger.Debug("Device busy, retrying",
			zap.Stringer("command", cmd),
			zap.Int("attempt", ex.Attempts),
			zap.Duration("delay", next),
		)
		if err := sleep(ctx, next); err != nil {
			return nil, ex, err
		}
	}
}

// roundTrip performs a single write and read of ex.Request
func (c *Client) roundTrip(ctx context.Context, ex *Exchange) (*protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ex.Attempts++
	ex.Response = nil

	logging.LogFrame(c.logger, "tx", c.transport.String(), ex.Request)
	if err := c.transport.Write(ctx, ex.Request); err != nil {
		return nil, fmt.Errorf("%s: %w", ex.Command, err)
	}

	raw, err := c.transport.ReadAvailable(ctx, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ex.Command, err)
	}
	ex.Response = raw
	logging.LogFrame(c.logger, "rx", c.transport.String(), raw)

	resp, err := protocol.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ex.Command, err)
	}
	return resp, nil
}

func (c *Client) notify(ex Exchange) {
	if c.observer != nil {
		c.observer(ex)
	}
}

// simple runs a command whose response carries nothing but the status
func (c *Client) simple(ctx context.Context, cmd protocol.Command, payload []byte) (Reply, error) {
	resp, ex, err := c.exchange(ctx, cmd, payload)
	if err != nil {
		return Reply{Exchange: ex}, err
	}
	return Reply{Status: resp.Status, Exchange: ex}, nil
}

// shortPayload reports a response too short for cmd's layout. With a non-OK
// status the device may legitimately omit the fields, so only OK is an error.
func shortPayload(cmd protocol.Command, resp *protocol.Response, need int) error {
	if len(resp.Payload) >= need || resp.Status != protocol.StatusOK {
		return nil
	}
	return fmt.Errorf("%s: %w", cmd, protocol.NewFramingError(
		fmt.Sprintf("response payload is %d bytes, need %d", len(resp.Payload), need), resp.Raw))
}

// ReadBank reads the content of bank id.
func (c *Client) ReadBank(ctx context.Context, id uint8) (*BankContent, error) {
	resp, ex, err := c.exchange(ctx, protocol.CmdReadBank, protocol.Uint8(id))
	if err != nil {
		return nil, err
	}

	result := &BankContent{Reply: Reply{Status: resp.Status, Exchange: ex}, Bank: id}
	if err := shortPayload(protocol.CmdReadBank, resp, bankLengthSize); err != nil {
		return nil, err
	}
	if len(resp.Payload) < bankLengthSize {
		return result, nil
	}

	// Content is sliced by the declared length, not by what the frame holds
	length := int(resp.Payload[0]) | int(resp.Payload[1])<<8
	body := resp.Payload[bankLengthSize:]
	if length > len(body) {
		return nil, fmt.Errorf("%s: %w", protocol.CmdReadBank, protocol.NewFramingError(
			fmt.Sprintf("bank length %d exceeds %d received bytes", length, len(body)), resp.Raw))
	}
	content := body[:length]
	if i := nonASCII(content); i >= 0 {
		return nil, fmt.Errorf("%s: %w", protocol.CmdReadBank, protocol.NewFramingError(
			fmt.Sprintf("non-ASCII byte 0x%02x at content offset %d", content[i], i), resp.Raw))
	}

	result.Content = string(content)
	return result, nil
}

// WriteBank stores content in bank id. Content must be ASCII and at most
// MaxBankContent bytes; anything else fails with ErrInvalidContent before
// the device is contacted.
func (c *Client) WriteBank(ctx context.Context, id uint8, content string) (Reply, error) {
	if err := ValidateBankContent(content); err != nil {
		return Reply{}, err
	}

	payload := protocol.Concat(
		protocol.Uint8(id),
		protocol.Uint16(uint16(len(content))),
		[]byte(content),
	)
	return c.simple(ctx, protocol.CmdWriteBank, payload)
}

// DeviceLocked asks whether the device is locked. The answer is the status:
// StatusDeviceLocked when locked, StatusOK otherwise.
func (c *Client) DeviceLocked(ctx context.Context) (Reply, error) {
	return c.simple(ctx, protocol.CmdDeviceLocked, nil)
}

// DeviceLock locks the device.
func (c *Client) DeviceLock(ctx context.Context) (Reply, error) {
	return c.simple(ctx, protocol.CmdDeviceLock, nil)
}

// DeviceUnlock tries to unlock the device with phrase.
func (c *Client) DeviceUnlock(ctx context.Context, phrase uint32) (*UnlockResult, error) {
	resp, ex, err := c.exchange(ctx, protocol.CmdDeviceUnlock, protocol.Uint32(phrase))
	if err != nil {
		return nil, err
	}
	if err := shortPayload(protocol.CmdDeviceUnlock, resp, attemptsSize); err != nil {
		return nil, err
	}

	result := &UnlockResult{Reply: Reply{Status: resp.Status, Exchange: ex}}
	if len(resp.Payload) >= attemptsSize {
		result.RemainingAttempts = resp.Payload[0]
	}
	return result, nil
}

// SetPhrase sets the unlock phrase.
func (c *Client) SetPhrase(ctx context.Context, phrase uint32) (Reply, error) {
	return c.simple(ctx, protocol.CmdSetPhrase, protocol.Uint32(phrase))
}

// SetOperatingMode switches the device life-cycle mode.
func (c *Client) SetOperatingMode(ctx context.Context, mode protocol.OperatingMode) (Reply, error) {
	return c.simple(ctx, protocol.CmdOperatingMode, protocol.Uint8(byte(mode)))
}

// FactoryReset wipes the device.
func (c *Client) FactoryReset(ctx context.Context) (Reply, error) {
	return c.simple(ctx, protocol.CmdFactoryReset, nil)
}

// SetLedConfig configures the indicator.
func (c *Client) SetLedConfig(ctx context.Context, conf protocol.LedConfig) (Reply, error) {
	return c.simple(ctx, protocol.CmdLedConfSet, protocol.Uint8(byte(conf)))
}

// Version reads the device id and firmware versions.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	resp, ex, err := c.exchange(ctx, protocol.CmdVersion, nil)
	if err != nil {
		return nil, err
	}
	if err := shortPayload(protocol.CmdVersion, resp, versionSize); err != nil {
		return nil, err
	}

	info := &VersionInfo{Reply: Reply{Status: resp.Status, Exchange: ex}}
	if len(resp.Payload) >= versionSize {
		p := resp.Payload
		copy(info.UDID[:], p[:udidSize])
		copy(info.Firmware[:], p[udidSize:udidSize+fwVersionSize])
		copy(info.Zenroom[:], p[udidSize+fwVersionSize:versionSize])
	}
	return info, nil
}

// ExecScript submits a script job. It returns once the device has accepted
// or rejected the job; use PollScriptStatus or RunScript for the outcome.
func (c *Client) ExecScript(ctx context.Context, job ScriptJob) (Reply, error) {
	return c.simple(ctx, protocol.CmdExecScript, job.Payload())
}

// PollScriptStatus asks for the outcome of the last submitted job. A WAIT
// status means the job is still running.
func (c *Client) PollScriptStatus(ctx context.Context) (*ScriptStatus, error) {
	resp, ex, err := c.exchange(ctx, protocol.CmdExecScriptStatus, nil)
	if err != nil {
		return nil, err
	}
	if err := shortPayload(protocol.CmdExecScriptStatus, resp, exitCodeSize); err != nil {
		return nil, err
	}

	result := &ScriptStatus{Reply: Reply{Status: resp.Status, Exchange: ex}}
	if len(resp.Payload) >= exitCodeSize {
		result.ExitCode = resp.Payload[0]
	}
	return result, nil
}

// ValidateBankContent checks content against the limits WriteBank enforces
func ValidateBankContent(content string) error {
	if len(content) > MaxBankContent {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrInvalidContent, len(content), MaxBankContent)
	}
	if i := nonASCII([]byte(content)); i >= 0 {
		return fmt.Errorf("%w: non-ASCII byte 0x%02x at offset %d", ErrInvalidContent, content[i], i)
	}
	return nil
}

// nonASCII returns the index of the first byte above 0x7F, or -1
func nonASCII(b []byte) int {
	for i, c := range b {
		if c > 0x7F {
			return i
		}
	}
	return -1
}
