package bridge

import "time"

const (
	defaultRestartMaxAttempts    = 5
	defaultRestartInitialBackoff = 500 * time.Millisecond
	defaultRestartMaxBackoff     = 30 * time.Second
)

// backoffDelay returns the delay before restart attempt n (0-based):
// initial * 2^n, capped at max.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		initial = defaultRestartInitialBackoff
	}
	if max <= 0 {
		max = defaultRestartMaxBackoff
	}

	delay := initial * time.Duration(1<<uint(attempt))
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}
