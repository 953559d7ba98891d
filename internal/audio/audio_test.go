package audio

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/stemdeck-go/internal/errs"
	"github.com/cbegin/stemdeck-go/internal/mix"
	"github.com/cbegin/stemdeck-go/internal/transport"
)

var (
	_ transport.Handle     = (*Handle)(nil)
	_ transport.MixApplier = (*Handle)(nil)
)

// pcm16WAV builds a 16-bit stereo WAV holding frames copies of (l, r).
func pcm16WAV(sampleRate, frames int, l, r int16) []byte {
	dataSize := frames * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], 2)
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*4))
	binary.LittleEndian.PutUint16(out[32:], 4)
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(out[44+i*4:], uint16(l))
		binary.LittleEndian.PutUint16(out[46+i*4:], uint16(r))
	}
	return out
}

func readFloatFrame(t *testing.T, m *MixStage) (float32, float32) {
	t.Helper()
	buf := make([]byte, 8)
	n, err := m.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	return math.Float32frombits(binary.LittleEndian.Uint32(buf)), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))
}

func TestDecodeWAV(t *testing.T) {
	data := pcm16WAV(48000, 24000, 1000, -1000)
	s, err := Decode(data, "x.bin", 48000)
	require.NoError(t, err)
	assert.Equal(t, int64(24000*4), s.Length())
	assert.InDelta(t, 0.5, Seconds(s, 48000), 1e-9)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not audio"), "notes.txt", 48000)
	assert.ErrorIs(t, err, errs.ErrDecode)

	_, err = Decode([]byte("RIFF\x00\x00\x00\x00WAVE"), "broken.wav", 48000)
	assert.ErrorIs(t, err, errs.ErrDecode)
}

func TestSniff(t *testing.T) {
	assert.Equal(t, formatWAV, sniff(pcm16WAV(8000, 1, 0, 0), ""))
	assert.Equal(t, formatVorbis, sniff([]byte("OggS...."), ""))
	assert.Equal(t, formatMP3, sniff([]byte("ID3\x03"), ""))
	assert.Equal(t, formatMP3, sniff([]byte{0xFF, 0xFB, 0x90}, ""))
	assert.Equal(t, formatMP3, sniff(nil, "song.MP3"))
	assert.Equal(t, formatUnknown, sniff(nil, "song.flac"))
}

func TestMixStageAppliesGainAndBalance(t *testing.T) {
	s, err := Decode(pcm16WAV(48000, 16, 16384, -16384), "a.wav", 48000)
	require.NoError(t, err)
	m := NewMixStage(s)
	assert.Equal(t, int64(16*8), m.Length())

	l, r := readFloatFrame(t, m)
	assert.InDelta(t, 0.5, l, 1e-6)
	assert.InDelta(t, -0.5, r, 1e-6)

	m.SetMix(mix.GainDb(50), -1)
	l, r = readFloatFrame(t, m)
	assert.InDelta(t, 0.25, l, 1e-4)
	assert.Equal(t, float32(0), r)

	m.SetMix(0, 0.5)
	l, r = readFloatFrame(t, m)
	assert.InDelta(t, 0.25, l, 1e-6)
	assert.InDelta(t, -0.5, r, 1e-6)

	m.SetMix(mix.SilentDb, 0)
	l, r = readFloatFrame(t, m)
	assert.Zero(t, l)
	assert.Zero(t, r)
}

func TestMixStageSeekAndEOF(t *testing.T) {
	s, err := Decode(pcm16WAV(48000, 4, 100, 100), "a.wav", 48000)
	require.NoError(t, err)
	m := NewMixStage(s)

	pos, err := m.Seek(16, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(16), pos)

	buf := make([]byte, 64)
	n, err := m.Read(buf)
	assert.Equal(t, 16, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFetchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "click.wav")
	require.NoError(t, os.WriteFile(path, pcm16WAV(48000, 10, 1, 1), 0o644))

	data, err := Fetch(context.Background(), nil, path)
	require.NoError(t, err)
	assert.Len(t, data, 44+40)

	_, err = Fetch(context.Background(), nil, "file://"+path)
	require.NoError(t, err)

	_, err = Fetch(context.Background(), nil, filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, errs.ErrUnreachableSource)

	_, err = Fetch(context.Background(), nil, " ")
	assert.ErrorIs(t, err, errs.ErrUnreachableSource)
}

func TestFetchHTTP(t *testing.T) {
	wavData := pcm16WAV(48000, 4800, 5, 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stems/piano.wav" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(wavData)
	}))
	defer srv.Close()

	s, err := Open(context.Background(), srv.Client(), srv.URL+"/stems/piano.wav", 48000)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, Seconds(s, 48000), 1e-9)

	_, err = Open(context.Background(), srv.Client(), srv.URL+"/stems/nope.wav", 48000)
	assert.ErrorIs(t, err, errs.ErrUnreachableSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Fetch(ctx, srv.Client(), srv.URL+"/stems/piano.wav")
	assert.ErrorIs(t, err, errs.ErrUnreachableSource)
}

func TestHandleBeforeLoad(t *testing.T) {
	h := NewHandle(48000)
	assert.Error(t, h.PlayFrom(0))
	assert.Error(t, h.Stop())
	h.ApplyMix(-6, 0.2)
	assert.Zero(t, h.CurrentOffsetSeconds())
	assert.NoError(t, h.Close())
}
