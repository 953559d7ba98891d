package musicclock

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/stemdeck-go/internal/errs"
)

func TestToMusicalPosition(t *testing.T) {
	cases := []struct {
		name        string
		seconds     float64
		tempo       int
		beatsPerBar int
		want        Position
	}{
		{"origin", 0, 120, 4, Position{1, 1, 1}},
		{"two seconds at 120 in 4/4", 2.0, 120, 4, Position{2, 1, 1}},
		{"one sixteenth", 0.125, 120, 4, Position{1, 1, 2}},
		{"just under a beat", 0.4999, 120, 4, Position{1, 1, 4}},
		{"second beat", 0.5, 120, 4, Position{1, 2, 1}},
		{"waltz bar two", 1.5, 120, 3, Position{2, 1, 1}},
		{"slow tempo", 3.0, 60, 4, Position{1, 4, 1}},
		{"negative clamps", -5, 120, 4, Position{1, 1, 1}},
		{"nan clamps", math.NaN(), 120, 4, Position{1, 1, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToMusicalPosition(tc.seconds, tc.tempo, tc.beatsPerBar))
		})
	}
}

func TestToMusicalPositionRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		s := rng.Float64() * 600
		tempo := 30 + rng.Intn(240)
		bpb := 1 + rng.Intn(12)
		p := ToMusicalPosition(s, tempo, bpb)
		require.GreaterOrEqual(t, p.Bar, 1)
		require.GreaterOrEqual(t, p.Beat, 1)
		require.LessOrEqual(t, p.Beat, bpb)
		require.GreaterOrEqual(t, p.Sixteenth, 1)
		require.LessOrEqual(t, p.Sixteenth, 4)
	}
}

func TestToMusicalPositionSaturatesOnHugeInput(t *testing.T) {
	last := ToMusicalPosition(math.Inf(1), 120, 4)
	assert.Greater(t, last.Bar, 1)
	assert.Equal(t, 4, last.Beat)
	assert.Equal(t, 4, last.Sixteenth)
	for _, s := range []float64{1e19, 1e300, math.MaxFloat64} {
		p := ToMusicalPosition(s, 120, 4)
		assert.Equal(t, last, p, "%g", s)
	}
	assert.GreaterOrEqual(t, ToMusicalPosition(1e15, 300, 1).Bar, 1)
}

func TestRoundTripWithinOneSixteenth(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 2000; i++ {
		s := rng.Float64() * 600
		tempo := 30 + rng.Intn(240)
		bpb := 1 + rng.Intn(12)
		back, err := ToSeconds(ToMusicalPosition(s, tempo, bpb), tempo, bpb)
		require.NoError(t, err)
		require.Less(t, math.Abs(back-s), 15/float64(tempo), "s=%v tempo=%d bpb=%d", s, tempo, bpb)
	}
}

func TestToSecondsIsExactInverseOnGrid(t *testing.T) {
	for bar := 1; bar <= 8; bar++ {
		for beat := 1; beat <= 3; beat++ {
			for six := 1; six <= 4; six++ {
				p := Position{bar, beat, six}
				s, err := ToSeconds(p, 97, 3)
				require.NoError(t, err)
				assert.Equal(t, p, ToMusicalPosition(s, 97, 3))
			}
		}
	}
}

func TestToSecondsRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		pos   Position
		tempo int
		bpb   int
	}{
		{"zero tempo", Position{1, 1, 1}, 0, 4},
		{"zero beats per bar", Position{1, 1, 1}, 120, 0},
		{"bar zero", Position{0, 1, 1}, 120, 4},
		{"beat past bar", Position{1, 5, 1}, 120, 4},
		{"sixteenth five", Position{1, 1, 5}, 120, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ToSeconds(tc.pos, tc.tempo, tc.bpb)
			assert.ErrorIs(t, err, errs.ErrInvalidParameter)
		})
	}
}

func TestXToSeconds(t *testing.T) {
	ppb := PixelsPerBeat(1280, 4)
	assert.InDelta(t, 20.0, ppb, 1e-9)

	s, err := XToSeconds(40, ppb, 120)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-9)

	s, err = XToSeconds(-3, ppb, 120)
	require.NoError(t, err)
	assert.Zero(t, s)

	_, err = XToSeconds(10, 0, 120)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	_, err = XToSeconds(10, ppb, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "2:1:1", Position{2, 1, 1}.String())
	assert.Equal(t, "12.35s", FormatSeconds(12.345678))
	assert.Equal(t, 0.125, SixteenthDuration(120))
}

func TestParsePosition(t *testing.T) {
	p, err := ParsePosition("3:2:4")
	require.NoError(t, err)
	assert.Equal(t, Position{3, 2, 4}, p)

	p, err = ParsePosition(" 5 ")
	require.NoError(t, err)
	assert.Equal(t, Position{5, 1, 1}, p)

	for _, bad := range []string{"", "0:1:1", "a:b", "1:2:3:4"} {
		_, err := ParsePosition(bad)
		assert.ErrorIs(t, err, errs.ErrInvalidParameter, bad)
	}
}
