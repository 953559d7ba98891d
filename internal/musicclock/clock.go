// Package musicclock converts between playback seconds and bar:beat:sixteenth
// positions for a fixed tempo and time signature.
package musicclock

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cbegin/stemdeck-go/internal/errs"
)

const (
	// SixteenthsPerBeat is the fixed display subdivision.
	SixteenthsPerBeat = 4
	// VisibleBars is the number of bars a timeline view spans.
	VisibleBars = 16
)

// quantizeEpsilon keeps values produced by ToSeconds from flooring into the
// previous sixteenth.
const quantizeEpsilon = 1e-9

// Position is a 1-based musical position.
type Position struct {
	Bar       int `json:"bar"`
	Beat      int `json:"beat"`
	Sixteenth int `json:"sixteenth"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d:%d", p.Bar, p.Beat, p.Sixteenth)
}

// ToMusicalPosition returns the sixteenth containing seconds. Negative or NaN
// input is treated as zero; input past the last representable sixteenth,
// +Inf included, saturates there.
func ToMusicalPosition(seconds float64, tempo, beatsPerBar int) Position {
	if tempo <= 0 || beatsPerBar <= 0 || !(seconds > 0) {
		return Position{Bar: 1, Beat: 1, Sixteenth: 1}
	}
	totalBeats := seconds * float64(tempo) / 60
	f := math.Floor(totalBeats*SixteenthsPerBeat + quantizeEpsilon)
	total := int64(math.MaxInt64)
	if f < math.MaxInt64 {
		total = int64(f)
	}
	perBar := int64(beatsPerBar * SixteenthsPerBeat)
	rem := total % perBar
	bar := total / perBar
	if bar >= math.MaxInt {
		bar = math.MaxInt - 1
	}
	return Position{
		Bar:       int(bar) + 1,
		Beat:      int(rem/SixteenthsPerBeat) + 1,
		Sixteenth: int(rem%SixteenthsPerBeat) + 1,
	}
}

// ToSeconds returns the start time of the sixteenth at pos.
func ToSeconds(pos Position, tempo, beatsPerBar int) (float64, error) {
	if tempo <= 0 {
		return 0, errs.Invalid("tempo %d must be positive", tempo)
	}
	if beatsPerBar <= 0 {
		return 0, errs.Invalid("beats per bar %d must be positive", beatsPerBar)
	}
	if pos.Bar < 1 || pos.Beat < 1 || pos.Beat > beatsPerBar || pos.Sixteenth < 1 || pos.Sixteenth > SixteenthsPerBeat {
		return 0, errs.Invalid("position %s out of range for %d beats per bar", pos, beatsPerBar)
	}
	total := (pos.Bar-1)*beatsPerBar*SixteenthsPerBeat + (pos.Beat-1)*SixteenthsPerBeat + (pos.Sixteenth - 1)
	return float64(total) * SixteenthDuration(tempo), nil
}

// SixteenthDuration is the length of one sixteenth note in seconds.
func SixteenthDuration(tempo int) float64 {
	if tempo <= 0 {
		return 0
	}
	return 15 / float64(tempo)
}

// PixelsPerBeat returns the horizontal scale of a timeline of the given width
// showing VisibleBars bars.
func PixelsPerBeat(width float64, beatsPerBar int) float64 {
	if beatsPerBar <= 0 {
		return 0
	}
	return width / float64(VisibleBars*beatsPerBar)
}

// XToSeconds converts a pointer x coordinate on the timeline to seconds.
func XToSeconds(pixelX, pixelsPerBeat float64, tempo int) (float64, error) {
	if !(pixelsPerBeat > 0) {
		return 0, errs.Invalid("pixels per beat %v must be positive", pixelsPerBeat)
	}
	if tempo <= 0 {
		return 0, errs.Invalid("tempo %d must be positive", tempo)
	}
	if math.IsNaN(pixelX) || pixelX < 0 {
		return 0, nil
	}
	return (pixelX / pixelsPerBeat) / (float64(tempo) / 60), nil
}

// FormatSeconds renders seconds with two decimals, e.g. "12.34s".
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 2, 64) + "s"
}

// ParsePosition parses "bar:beat:sixteenth". Missing trailing fields default
// to 1, so "5" and "5:3" are accepted.
func ParsePosition(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Position{}, errs.Invalid("empty position")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return Position{}, errs.Invalid("position %q has too many fields", s)
	}
	vals := [3]int{1, 1, 1}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return Position{}, errs.Invalid("position %q: field %d must be a positive integer", s, i+1)
		}
		vals[i] = n
	}
	return Position{Bar: vals[0], Beat: vals[1], Sixteenth: vals[2]}, nil
}
