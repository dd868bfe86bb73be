package fetch

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoffPrecision is the granularity delays are rounded to.
const backoffPrecision = 10 * time.Millisecond

// Backoff computes jittered exponential retry delays.
//
// The delay for attempt a is min(Cap, Base*2^a) * (0.5 + U), U uniform in
// [0,1), rounded to 10ms.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration

	// rand returns a value in [0,1). nil means math/rand/v2.
	rand func() float64
}

// NewBackoff returns a Backoff with the given base and cap.
func NewBackoff(base, ceiling time.Duration) Backoff {
	return Backoff{Base: base, Cap: ceiling}
}

// Ceiling returns min(Cap, Base*2^attempt), the delay before jitter.
func (b Backoff) Ceiling(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	exp := float64(b.Base) * math.Pow(2, float64(attempt))
	if exp > float64(b.Cap) || math.IsInf(exp, 1) {
		return b.Cap
	}
	return time.Duration(exp)
}

// Delay returns the jittered delay to wait after the given attempt failed.
func (b Backoff) Delay(attempt int) time.Duration {
	u := rand.Float64
	if b.rand != nil {
		u = b.rand
	}
	d := time.Duration(float64(b.Ceiling(attempt)) * (0.5 + u()))
	return d.Round(backoffPrecision)
}
