package device

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// newBackOff returns an exponential schedule from initial to max with no
// elapsed-time cap. maxRetries > 0 bounds the number of delays handed out.
func newBackOff(initial, max time.Duration, maxRetries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	if max > 0 {
		b.MaxInterval = max
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	if maxRetries > 0 {
		return backoff.WithMaxRetries(b, uint64(maxRetries))
	}
	return b
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
