// Package backoff implements the retry delay policy shared by the operation
// queue and the sync orchestrator.
package backoff

import "time"

// MaxAttempts is the retry ceiling. An operation that has failed this many
// times is moved to the permanently-failed pool and no longer drained.
const MaxAttempts = 5

const (
	baseDelay = 2 * time.Second
	maxDelay  = 60 * time.Second
)

// Delay returns the minimum time an operation must wait after its most
// recent failed attempt before it becomes eligible again. The delay doubles
// with each retry and is capped at maxDelay.
func Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	delay := baseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}

	return delay
}

// Eligible reports whether an operation may be attempted at the given time.
// An operation that has never been attempted is always eligible.
func Eligible(retryCount int, lastRetryAt *time.Time, now time.Time) bool {
	if lastRetryAt == nil {
		return true
	}
	return now.Sub(*lastRetryAt) >= Delay(retryCount)
}
