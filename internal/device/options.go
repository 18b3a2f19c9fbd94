package device

import (
	"time"

	"go.uber.org/zap"
)

// Observer receives the raw exchange of every completed command
type Observer func(Exchange)

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the read window for each response.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithObserver registers a callback for every exchange. The callback runs
// synchronously while the client is locked and must not call back into it.
func WithObserver(fn Observer) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// WithLogger sets the logger used for frame dumps and retries.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBusyRetry makes the client resend a request while the device answers
// WAIT, up to maxRetries extra attempts with exponential backoff between
// initial and max. When the budget runs out the last WAIT reply is returned.
func WithBusyRetry(maxRetries int, initial, max time.Duration) Option {
	return func(c *Client) {
		c.busy = BusyRetry{
			MaxRetries:   maxRetries,
			InitialDelay: initial,
			MaxDelay:     max,
		}
	}
}

// BusyRetry is the policy applied to WAIT replies. The zero value disables it.
type BusyRetry struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Enabled reports whether any retry will happen
func (b BusyRetry) Enabled() bool { return b.MaxRetries > 0 }
