package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrRateLimited marks a rate-limit response from an upstream API. Operations
// should wrap it so Do can apply the longer rate-limit backoff.
var ErrRateLimited = errors.New("rate limited")

// Permanent wraps an error that must not be retried (not-found, forbidden,
// malformed input).
type Permanent struct {
	Err error
}

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

// IsRateLimit reports whether err carries a rate-limit signal.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Do runs op up to maxAttempts times, sleeping baseDelay*2^attempt plus
// random jitter between attempts. Rate-limited attempts back off from
// rateLimitBase instead when it is larger. The last error is returned once
// attempts are exhausted; permanent errors abort immediately.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(baseDelay, attempt, IsRateLimit(lastErr))
			logrus.Debugf("Retry attempt %d after %v: %v", attempt+1, delay, lastErr)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		var perm Permanent
		if errors.As(lastErr, &perm) {
			return perm.Err
		}
	}

	return lastErr
}

func backoffDelay(base time.Duration, attempt int, rateLimited bool) time.Duration {
	if rateLimited && base < 2*time.Second {
		base = 2 * time.Second
	}

	delay := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base)/2 + 1))
	return delay + jitter
}
