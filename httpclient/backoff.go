package httpclient

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// DefaultMaxRetryAfter caps a server-requested Retry-After wait
const DefaultMaxRetryAfter = 60 * time.Second

const maxBackoffExponent = 30

// backoffDelay returns the wait after attempt ordinal failed:
// base × 2^(ordinal−1) × jitter, with jitter uniform in [1, 2) unless disabled.
func backoffDelay(base time.Duration, ordinal int, jitter bool) time.Duration {
	exp := max(ordinal-1, 0)
	exp = min(exp, maxBackoffExponent)
	delay := base * time.Duration(1<<exp)
	if jitter {
		delay = time.Duration(float64(delay) * (1 + rand.Float64()))
	}
	return delay
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// nextDelay combines the exponential delay with a Retry-After hint from 429/503 responses.
// The hint only ever lengthens the wait and is capped at limit.
func nextDelay(a Attempt, base time.Duration, jitter bool, limit time.Duration) time.Duration {
	delay := backoffDelay(base, a.Ordinal, jitter)
	if a.StatusCode != StatusTooManyRequests && a.StatusCode != http.StatusServiceUnavailable {
		return delay
	}
	hint, ok := retryAfter(a.Headers, time.Now())
	if !ok {
		return delay
	}
	if limit > 0 {
		hint = min(hint, limit)
	}
	return max(delay, hint)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
