// Package effects holds the master-bus stage applied to offline bounces.
package effects

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// Apply runs the chain over interleaved stereo samples in place.
func (c *Chain) Apply(samples []float32) {
	if len(c.effects) == 0 {
		return
	}
	for i := 0; i+1 < len(samples); i += 2 {
		samples[i], samples[i+1] = c.Process(samples[i], samples[i+1])
	}
}

// MasterConfig describes the master stage of a bounce. Zero values leave the
// signal untouched.
type MasterConfig struct {
	LowDb, MidDb, HighDb float64
	// LimitCeilingDb enables the limiter when negative.
	LimitCeilingDb float64
}

func (m MasterConfig) hasEQ() bool {
	return m.LowDb != 0 || m.MidDb != 0 || m.HighDb != 0
}

// NewMaster builds the master chain: tone EQ, then limiter.
func NewMaster(sampleRate int, cfg MasterConfig) *Chain {
	c := NewChain()
	if cfg.hasEQ() {
		c.Add(NewEQ3Band(sampleRate, cfg.LowDb, cfg.MidDb, cfg.HighDb, 250, 4000))
	}
	if cfg.LimitCeilingDb < 0 {
		c.Add(NewLimiter(sampleRate, cfg.LimitCeilingDb, 0.5, 80))
	}
	return c
}
