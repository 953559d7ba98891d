package effects

import "math"

// Limiter keeps a stereo bus under a ceiling. Both channels share one
// envelope so limiting never shifts the stereo image.
type Limiter struct {
	ceiling float32
	attack  float32
	release float32
	env     float32
}

// NewLimiter creates a limiter with a ceiling in dBFS and attack/release
// times in milliseconds.
func NewLimiter(sampleRate int, ceilingDb, attackMs, releaseMs float64) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		ceiling: float32(math.Pow(10, ceilingDb/20)),
		attack:  float32(1.0 - math.Exp(-1.0/(attackMs*sr/1000.0))),
		release: float32(1.0 - math.Exp(-1.0/(releaseMs*sr/1000.0))),
	}
}

func (lm *Limiter) Process(l, r float32) (float32, float32) {
	peak := float32(math.Max(math.Abs(float64(l)), math.Abs(float64(r))))
	if peak > lm.env {
		lm.env += lm.attack * (peak - lm.env)
	} else {
		lm.env += lm.release * (peak - lm.env)
	}
	g := float32(1)
	if lm.env > lm.ceiling {
		g = lm.ceiling / lm.env
	}
	l, r = l*g, r*g
	// the envelope lags transients; clip whatever it lets through
	return clamp(l, -lm.ceiling, lm.ceiling), clamp(r, -lm.ceiling, lm.ceiling)
}

func (lm *Limiter) Reset() {
	lm.env = 0
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
