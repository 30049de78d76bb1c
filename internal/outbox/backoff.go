package outbox

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig controls the exponential-with-jitter retry schedule:
// delay(n) = min(cap, base*mult^n) * (1 +/- jitter).
type BackoffConfig struct {
	Base       time.Duration
	Cap        time.Duration
	Multiplier float64
	JitterFrac float64
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base:       100 * time.Millisecond,
		Cap:        30 * time.Second,
		Multiplier: 2.0,
		JitterFrac: 0.10,
	}
}

// Delay returns the backoff duration for the n-th retry (n >= 1), jittered
// by +/- JitterFrac and clamped to Cap.
func (c BackoffConfig) Delay(n int) time.Duration {
	raw := float64(c.Base) * math.Pow(c.Multiplier, float64(n))
	if raw > float64(c.Cap) {
		raw = float64(c.Cap)
	}
	jitter := 1 + (rand.Float64()*2-1)*c.JitterFrac
	d := time.Duration(raw * jitter)
	if d > c.Cap {
		d = c.Cap
	}
	if d < 0 {
		d = 0
	}
	return d
}
