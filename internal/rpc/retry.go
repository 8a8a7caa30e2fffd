package rpc

import "time"

// Retry policy defaults: up to 3 attempts, 1s initial delay, doubling,
// capped at 10s.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1000 * time.Millisecond
	DefaultMultiplier   = 2.0
	DefaultMaxDelay     = 10000 * time.Millisecond
)

// RetryObserver is invoked before each backoff sleep with the attempt number
// that just failed, its error, and the delay about to be applied. Used for
// logging; earlier attempts' errors are otherwise discarded.
type RetryObserver func(attempt int, err error, delay time.Duration)

// RetryConfig controls the retry loop of a logical RPC call.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget, including the first.
	MaxAttempts int

	// InitialDelay is the backoff before the second attempt.
	InitialDelay time.Duration

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Observer, when set, sees each retried error before the sleep.
	Observer RetryObserver
}

// DefaultRetryConfig returns the standard retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
		MaxDelay:     DefaultMaxDelay,
	}
}

// withDefaults fills zero fields with the standard policy values.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	return c
}

// delayFor computes the backoff delay applied after the given failed attempt
// (1-based): InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (c RetryConfig) delayFor(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= c.Multiplier
		if delay >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	if delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}
