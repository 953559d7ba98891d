package stemdeck

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bounceRate = 44100

func writeStem(t *testing.T, dir, name string, frames int, l, r int16) string {
	t.Helper()
	dataSize := frames * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], 2)
	binary.LittleEndian.PutUint32(out[24:], bounceRate)
	binary.LittleEndian.PutUint32(out[28:], bounceRate*4)
	binary.LittleEndian.PutUint16(out[32:], 4)
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(out[44+i*4:], uint16(l))
		binary.LittleEndian.PutUint16(out[46+i*4:], uint16(r))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, out, 0o644))
	return path
}

func vol(v float64) *float64 { return &v }

func bounceSong(t *testing.T) Song {
	dir := t.TempDir()
	return Song{
		ID:                       "stems",
		Tempo:                    120,
		TimeSignatureBeatsPerBar: 4,
		Tracks: []Track{
			{ID: "piano", Kind: KindPiano, Volume: vol(100), Source: writeStem(t, dir, "piano.wav", 4410, 16384, 16384)},
			{ID: "click", Kind: KindClick, Volume: vol(100), Muted: true, Source: writeStem(t, dir, "click.wav", 8820, 16384, 16384)},
			{ID: "alto", Kind: KindVocals, Volume: vol(50), Pan: -50, Source: writeStem(t, dir, "alto.wav", 2205, 16384, 16384)},
		},
	}
}

func TestBounceAppliesMix(t *testing.T) {
	res, err := Bounce(context.Background(), bounceSong(t), bounceRate, BounceOptions{})
	require.NoError(t, err)

	// the muted click is silent but still sets the length
	assert.Equal(t, 8820, res.Frames())
	assert.InDelta(t, 0.2, res.Seconds(), 1e-9)

	// piano centre at unity plus alto hard left at half volume
	assert.InDelta(t, 0.75, res.Samples[0], 1e-4)
	assert.InDelta(t, 0.5, res.Samples[1], 1e-4)
	// alto has ended
	assert.InDelta(t, 0.5, res.Samples[2*3000], 1e-4)
	assert.InDelta(t, 0.5, res.Samples[2*3000+1], 1e-4)
	// only the click was left and it is muted
	assert.Zero(t, res.Samples[2*5000])

	assert.InDelta(t, 20*math.Log10(0.75), res.PeakDb, 1e-3)
	assert.Less(t, res.RMSDb, res.PeakDb)
	assert.Empty(t, res.Skipped)
}

func TestBounceSoloAndDuration(t *testing.T) {
	s := bounceSong(t)
	s.Tracks[1].Solo = true
	s.DurationSeconds = 0.05

	res, err := Bounce(context.Background(), s, bounceRate, BounceOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2205, res.Frames())
	for i := 0; i < len(res.Samples); i += 501 {
		assert.InDelta(t, 0.5, res.Samples[i], 1e-4, "only the soloed click sounds")
	}

	res, err = Bounce(context.Background(), s, bounceRate, BounceOptions{Duration: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 22050, res.Frames(), "short stems are padded with silence")
	assert.Zero(t, res.Samples[len(res.Samples)-1])
}

func TestBounceLimiter(t *testing.T) {
	res, err := Bounce(context.Background(), bounceSong(t), bounceRate, BounceOptions{LimitCeilingDb: -6})
	require.NoError(t, err)
	assert.LessOrEqual(t, res.PeakDb, -6.0+1e-4)
}

func TestBounceSkipsMissingTrack(t *testing.T) {
	s := bounceSong(t)
	s.Tracks[0].Source = filepath.Join(t.TempDir(), "missing.wav")

	res, err := Bounce(context.Background(), s, bounceRate, BounceOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachableSource)
	require.NotNil(t, res)
	assert.Equal(t, []string{"piano"}, res.Skipped)
	assert.InDelta(t, 0.25, res.Samples[0], 1e-4)
}

func TestBounceRejectsBadInput(t *testing.T) {
	_, err := Bounce(context.Background(), Song{}, bounceRate, BounceOptions{})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = Bounce(context.Background(), bounceSong(t), 0, BounceOptions{})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Bounce(ctx, bounceSong(t), bounceRate, BounceOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeWAVFloat32LEHeader(t *testing.T) {
	wav := EncodeWAVFloat32LE([]float32{0.5, -0.5}, 48000, 2)
	require.Len(t, wav, 52)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(wav[20:]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wav[24:]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(wav[40:]))
	assert.Equal(t, float32(-0.5), math.Float32frombits(binary.LittleEndian.Uint32(wav[48:])))
}
