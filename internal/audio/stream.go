package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/cbegin/stemdeck-go/internal/mix"
)

const (
	bytesPerInFrame  = 4 // 16-bit stereo from the decoders
	bytesPerOutFrame = 8 // 32-bit float stereo to the player
)

// Decoded is a seekable signed 16-bit little-endian stereo stream, as
// produced by ebiten's wav, mp3 and vorbis decoders.
type Decoded interface {
	io.ReadSeeker
	Length() int64
}

type levels struct {
	left, right float32
}

// MixStage converts a decoded stream to 32-bit float stereo and applies the
// track's gain and balance on the way. Gain and pan are swapped together.
type MixStage struct {
	mu     sync.Mutex
	src    Decoded
	buf    []byte
	levels atomic.Pointer[levels]
}

func NewMixStage(src Decoded) *MixStage {
	m := &MixStage{src: src}
	m.levels.Store(&levels{left: 1, right: 1})
	return m
}

// SetMix sets gain in dB and balance in [-1, 1].
func (m *MixStage) SetMix(gainDb, pan float64) {
	m.levels.Store(balance(gainDb, pan))
}

func balance(gainDb, pan float64) *levels {
	l, r := mix.Balance(gainDb, pan)
	return &levels{left: float32(l), right: float32(r)}
}

func (m *MixStage) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := len(p) / bytesPerOutFrame
	if frames == 0 {
		return 0, nil
	}
	need := frames * bytesPerInFrame
	if cap(m.buf) < need {
		m.buf = make([]byte, need)
	}
	m.buf = m.buf[:need]
	n, err := io.ReadFull(m.src, m.buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	frames = n / bytesPerInFrame
	lv := m.levels.Load()
	for i := 0; i < frames; i++ {
		l := float32(int16(binary.LittleEndian.Uint16(m.buf[i*4:]))) / 32768 * lv.left
		r := float32(int16(binary.LittleEndian.Uint16(m.buf[i*4+2:]))) / 32768 * lv.right
		binary.LittleEndian.PutUint32(p[i*8:], math.Float32bits(l))
		binary.LittleEndian.PutUint32(p[i*8+4:], math.Float32bits(r))
	}
	return frames * bytesPerOutFrame, err
}

func (m *MixStage) Seek(offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.src.Seek(offset/bytesPerOutFrame*bytesPerInFrame, whence)
	return n / bytesPerInFrame * bytesPerOutFrame, err
}

// Length is the output length in bytes.
func (m *MixStage) Length() int64 {
	return m.src.Length() / bytesPerInFrame * bytesPerOutFrame
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}
