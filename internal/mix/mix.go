// Package mix resolves per-track volume, pan, mute and solo into the gain and
// stereo placement that reach a track's output.
package mix

import (
	"math"

	"github.com/cbegin/stemdeck-go/internal/errs"
)

const (
	MinVolume     = 0.0
	MaxVolume     = 100.0
	DefaultVolume = 70.0
	MinPan        = -50.0
	MaxPan        = 50.0

	// VolumeFloor keeps the dB mapping finite for tiny non-zero volumes.
	VolumeFloor = 0.01
	// SilentDb is the gain sent to a handle that must not be heard. It sits
	// below anything GainDb computes for a non-zero volume.
	SilentDb = -120.0
)

// Channel is the stored mix state of one track.
type Channel struct {
	ID     string  `json:"id"`
	Volume float64 `json:"volume"`
	Pan    float64 `json:"pan"`
	Muted  bool    `json:"muted"`
	Solo   bool    `json:"solo"`
}

// EffectiveMix is the derived output state of one track.
type EffectiveMix struct {
	GainDb  float64 `json:"gainDb"`
	Pan     float64 `json:"pan"`
	Audible bool    `json:"audible"`
}

// OutputGainDb is the gain a handle should apply: the track gain when audible
// and SilentDb otherwise.
func (e EffectiveMix) OutputGainDb() float64 {
	if !e.Audible {
		return SilentDb
	}
	return e.GainDb
}

// GainDb maps a volume percentage to decibels relative to full scale.
func GainDb(volume float64) float64 {
	if volume <= 0 {
		return SilentDb
	}
	return 20 * math.Log10(math.Max(volume, VolumeFloor)/MaxVolume)
}

// DbToLinear converts a gain in dB to a linear factor. SilentDb and below map
// to exactly zero.
func DbToLinear(db float64) float64 {
	if db <= SilentDb || math.IsNaN(db) {
		return 0
	}
	return math.Pow(10, db/20)
}

// PanNormalized maps a pan percentage to [-1, 1].
func PanNormalized(pan float64) float64 {
	return math.Max(-1, math.Min(1, pan/MaxPan))
}

// ValidateVolume rejects volumes outside [0, 100].
func ValidateVolume(v float64) error {
	if math.IsNaN(v) || v < MinVolume || v > MaxVolume {
		return errs.Invalid("volume %v outside [%v, %v]", v, MinVolume, MaxVolume)
	}
	return nil
}

// ValidatePan rejects pans outside [-50, 50].
func ValidatePan(p float64) error {
	if math.IsNaN(p) || p < MinPan || p > MaxPan {
		return errs.Invalid("pan %v outside [%v, %v]", p, MinPan, MaxPan)
	}
	return nil
}

// Resolve computes the effective mix of every channel. When any channel is
// soloed only soloed channels are audible; otherwise unmuted ones are.
func Resolve(channels []Channel) []EffectiveMix {
	anySolo := false
	for _, c := range channels {
		if c.Solo {
			anySolo = true
			break
		}
	}
	out := make([]EffectiveMix, len(channels))
	for i, c := range channels {
		audible := !c.Muted
		if anySolo {
			audible = c.Solo
		}
		out[i] = EffectiveMix{
			GainDb:  GainDb(c.Volume),
			Pan:     PanNormalized(c.Pan),
			Audible: audible,
		}
	}
	return out
}

// Balance returns the linear left and right factors for a stereo source at
// gainDb and pan. Centre leaves both sides at the track gain; panning
// attenuates the opposite side only.
func Balance(gainDb, pan float64) (left, right float64) {
	g := DbToLinear(gainDb)
	left, right = g, g
	switch {
	case pan < 0:
		right *= 1 + math.Max(pan, -1)
	case pan > 0:
		left *= 1 - math.Min(pan, 1)
	}
	return left, right
}
