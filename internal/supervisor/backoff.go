// ABOUTME: Linear reconnect backoff policy
// ABOUTME: Waits base*attempt between attempts with no jitter, up to a fixed attempt count

package supervisor

import "time"

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 5 * time.Second
)

// Backoff is a linear retry policy. The zero value uses the defaults.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (b Backoff) attempts() int {
	if b.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return b.MaxAttempts
}

// NextDelay returns the wait after failed attempt n (1-based).
func (b Backoff) NextDelay(attempt int) time.Duration {
	base := b.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return base * time.Duration(attempt)
}

// ShouldRetry reports whether another attempt follows failed attempt n, and
// how long to wait before it.
func (b Backoff) ShouldRetry(attempt int) (bool, time.Duration) {
	if attempt >= b.attempts() {
		return false, 0
	}
	return true, b.NextDelay(attempt)
}
