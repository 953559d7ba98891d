package transport

import (
	"context"

	"github.com/cbegin/stemdeck-go/internal/mix"
)

// Handle is one track's audio output. The transport owns handles but never
// decodes or renders audio itself.
type Handle interface {
	// Load prepares the source and reports its duration in seconds. It may
	// block; the transport always calls it off the caller's goroutine.
	Load(ctx context.Context, source string) (float64, error)
	// PlayFrom positions the output at offset seconds and starts it.
	PlayFrom(offset float64) error
	// Stop halts output. The handle keeps its internal offset.
	Stop() error
	SetGainDb(db float64)
	SetPan(pan float64)
	// CurrentOffsetSeconds is the handle's own view of its playback offset.
	CurrentOffsetSeconds() float64
	Close() error
}

// MixApplier is implemented by handles that can take gain and pan in one step.
type MixApplier interface {
	ApplyMix(gainDb, pan float64)
}

// HandleFactory creates the handle for one track.
type HandleFactory func(trackID string) (Handle, error)

func applyToHandle(h Handle, m mix.EffectiveMix) {
	if ma, ok := h.(MixApplier); ok {
		ma.ApplyMix(m.OutputGainDb(), m.Pan)
		return
	}
	h.SetGainDb(m.OutputGainDb())
	h.SetPan(m.Pan)
}
