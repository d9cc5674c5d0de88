package llm

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current state.
type BreakerState string

const (
	BreakerClosed BreakerState = "closed"
	BreakerOpen   BreakerState = "open"
)

// Breaker is a process-wide circuit breaker over LLM call errors: once
// errorThreshold failures land inside window, it opens and rejects calls
// for cooldown; the first call attempted after cooldown elapses is let
// through as a probe, and its outcome decides whether the breaker closes
// again or reopens for another cooldown.
//
// This is a deliberate simplification of the teacher's
// internal/risk/circuitbreaker.go, which models eight graduated trading
// states driven by drawdown thresholds. This domain only needs a binary
// available/unavailable signal around one external dependency, so the
// extra states would be unused machinery.
type Breaker struct {
	mu             sync.Mutex
	errorThreshold int
	window         time.Duration
	cooldown       time.Duration

	state         BreakerState
	failures      []time.Time
	openedAt      time.Time
	probeInFlight bool
}

// NewBreaker builds a Breaker in the closed state.
func NewBreaker(errorThreshold int, window, cooldown time.Duration) *Breaker {
	return &Breaker{
		errorThreshold: errorThreshold,
		window:         window,
		cooldown:       cooldown,
		state:          BreakerClosed,
	}
}

// Allow reports whether a call may proceed now, and if the breaker is open
// past its cooldown, marks the call as the probe attempt.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if now.Sub(b.openedAt) < b.cooldown {
			return false
		}
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return true
	}
}

// RecordSuccess clears failure history and closes the breaker, ending any
// in-flight probe.
func (b *Breaker) RecordSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = nil
	b.state = BreakerClosed
	b.probeInFlight = false
}

// RecordFailure appends a failure timestamp; if errorThreshold failures now
// fall within window, the breaker opens. A probe failure reopens the
// breaker immediately and resets its cooldown clock.
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.probeInFlight {
		b.probeInFlight = false
		b.openBreakerLocked(now)
		return
	}

	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, f := range b.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	b.failures = append(kept, now)

	if len(b.failures) >= b.errorThreshold {
		b.openBreakerLocked(now)
	}
}

func (b *Breaker) openBreakerLocked(now time.Time) {
	b.state = BreakerOpen
	b.openedAt = now
	b.failures = nil
}

// State returns the breaker's current state, for health reporting.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
