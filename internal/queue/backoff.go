package queue

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff computes retry delays: exponential in the attempt number with full
// jitter, so a burst of failures against a rate-limited upstream never retries
// in lockstep. delay(n) = min(Max, Base * 2^(n-1)) * uniform(0.5, 1.5),
// clamped to Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewBackoff creates a Backoff with injected randomness so tests can seed it.
// Parameters:
//   - base: delay for the first retry (standard: 30s).
//   - max: upper bound on any computed delay (standard: 3600s).
//   - seed: PRNG seed for jitter.
// Returns:
//   - *Backoff: initialized backoff calculator.
func NewBackoff(base, max time.Duration, seed int64) *Backoff {
	return &Backoff{
		Base: base,
		Max:  max,
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

// Next returns the delay before retrying after the given attempt (1-based).
func (b *Backoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}

	b.mu.Lock()
	jitter := 0.5 + b.rnd.Float64()
	b.mu.Unlock()

	out := time.Duration(float64(d) * jitter)
	if out > b.Max {
		out = b.Max
	}
	return out
}
