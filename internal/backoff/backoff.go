// Package backoff provides the exponential delay generator used between
// session reconnection attempts. It is pure arithmetic: no clocks, no I/O.
package backoff

import "time"

// Backoff produces a geometric sequence of delays starting at an initial
// value, capped at a maximum, with an optional attempt limit. The zero
// value is not useful; use New.
type Backoff struct {
	initial     time.Duration
	max         time.Duration
	multiplier  float64
	attempt     int
	maxAttempts int
}

// New creates a backoff generator. A multiplier below 1 is clamped to 1.
// maxAttempts 0 means unlimited.
func New(initial, max time.Duration, multiplier float64, maxAttempts int) *Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{
		initial:     initial,
		max:         max,
		multiplier:  multiplier,
		maxAttempts: maxAttempts,
	}
}

// NextDelay returns the delay for the current attempt and increments the
// attempt counter. ok is false once the attempt limit has been reached.
func (b *Backoff) NextDelay() (delay time.Duration, ok bool) {
	if b.Exhausted() {
		return 0, false
	}
	delay = b.Delay()
	b.attempt++
	return delay, true
}

// Delay computes the delay for the current attempt without incrementing.
// The cap is applied after multiplication.
func (b *Backoff) Delay() time.Duration {
	d := float64(b.initial)
	for i := 0; i < b.attempt; i++ {
		d *= b.multiplier
		if time.Duration(d) >= b.max {
			return b.max
		}
	}
	delay := time.Duration(d)
	if delay > b.max {
		return b.max
	}
	return delay
}

// Reset returns the attempt counter to zero, restoring the initial delay.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of delays handed out since the last reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// MaxAttempts returns the configured attempt limit (0 = unlimited).
func (b *Backoff) MaxAttempts() int {
	return b.maxAttempts
}

// Exhausted reports whether the attempt limit has been reached.
func (b *Backoff) Exhausted() bool {
	return b.maxAttempts > 0 && b.attempt >= b.maxAttempts
}
