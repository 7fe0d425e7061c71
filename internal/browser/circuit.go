package browser

import (
	"fmt"
	"time"
)

// circuitBreaker counts consecutive launch failures and opens after
// CircuitThreshold of them, auto-resetting after CircuitResetDelay (spec
// §4.3). It is private state of the Pool, guarded by the Pool's mutex rather
// than its own lock.
type circuitBreaker struct {
	consecutiveFailures int
	reopenAt            time.Time
	threshold           int
	resetDelay          time.Duration
}

func newCircuitBreaker(threshold int, resetDelay time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, resetDelay: resetDelay}
}

// isOpen reports whether the circuit is currently open at the given instant.
func (c *circuitBreaker) isOpen(now time.Time) bool {
	return c.reopenAt.After(now)
}

// recordSuccess resets the breaker on a successful launch.
func (c *circuitBreaker) recordSuccess() {
	c.consecutiveFailures = 0
	c.reopenAt = time.Time{}
}

// recordFailure counts a launch failure, tripping the breaker once the
// threshold is reached. Returns true if this failure tripped the breaker.
func (c *circuitBreaker) recordFailure(now time.Time) bool {
	c.consecutiveFailures++
	if c.consecutiveFailures >= c.threshold {
		c.reopenAt = now.Add(c.resetDelay)
		return true
	}
	return false
}

// remaining returns the cool-down remaining at the given instant, clamped to
// zero once the circuit has closed.
func (c *circuitBreaker) remaining(now time.Time) time.Duration {
	d := c.reopenAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// CircuitOpenError is returned when an acquisition is rejected because the
// breaker is open (spec §4.3, §7 "CircuitOpen").
type CircuitOpenError struct {
	RemainingSeconds float64
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open, retry in %.1fs", e.RemainingSeconds)
}
