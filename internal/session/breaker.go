package session

import (
	"sync"
	"time"
)

// BreakerState is the health state of the accelerator link.
type BreakerState int

const (
	// LinkHealthy: commands flow normally.
	LinkHealthy BreakerState = iota
	// LinkTripped: consecutive wire failures exceeded the threshold; the
	// link is presumed dead until the cooldown passes.
	LinkTripped
	// LinkProbing: cooldown elapsed, one command is allowed through to
	// test the link.
	LinkProbing
)

// Breaker guards the session against hammering a dead or wedged link. It
// only refuses obviously failing links; retry policy itself stays with the
// caller.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time
}

// NewBreaker trips after maxFailures consecutive failures and probes again
// after cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:       LinkHealthy,
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

// Allow reports whether a command may be issued now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case LinkHealthy:
		return true
	case LinkTripped:
		if time.Since(b.lastFailure) > b.cooldown {
			b.state = LinkProbing
			return true
		}
		return false
	default: // LinkProbing: the single probe is in flight or pending
		return true
	}
}

// Success records a completed transaction.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = LinkHealthy
	b.failures = 0
}

// Failure records a failed transaction.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case LinkHealthy:
		if b.failures >= b.maxFailures {
			b.state = LinkTripped
		}
	case LinkProbing:
		b.state = LinkTripped
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
