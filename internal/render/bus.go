// Package render sums already-mixed track buffers into a stereo master and
// measures the result.
package render

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/viterin/vek/vek32"
)

// FloorDb is reported for digital silence.
const FloorDb = -144.0

// Bus is an interleaved stereo accumulator.
type Bus struct {
	samples []float32
}

func NewBus(frames int) *Bus {
	return &Bus{samples: make([]float32, frames*2)}
}

// Add sums interleaved stereo samples into the bus, growing it if src is
// longer.
func (b *Bus) Add(src []float32) {
	if len(src) > len(b.samples) {
		grown := make([]float32, len(src))
		copy(grown, b.samples)
		b.samples = grown
	}
	vek32.Add_Inplace(b.samples[:len(src)], src)
}

// Scale multiplies the whole bus by gain.
func (b *Bus) Scale(gain float32) {
	if len(b.samples) == 0 {
		return
	}
	vek32.MulNumber_Inplace(b.samples, gain)
}

// Truncate limits the bus to frames stereo frames, padding with silence.
func (b *Bus) Truncate(frames int) {
	n := frames * 2
	if n <= len(b.samples) {
		b.samples = b.samples[:n]
		return
	}
	grown := make([]float32, n)
	copy(grown, b.samples)
	b.samples = grown
}

func (b *Bus) Samples() []float32 { return b.samples }

func (b *Bus) Frames() int { return len(b.samples) / 2 }

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	tmp := make([]float32, len(samples))
	copy(tmp, samples)
	vek32.Abs_Inplace(tmp)
	return vek32.Max(tmp)
}

// RMS returns the root mean square of samples.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	sq := vek32.Mul_Into(make([]float32, len(samples)), samples, samples)
	return float32(math.Sqrt(float64(vek32.Mean(sq))))
}

// ToDb converts a linear amplitude to dBFS, bottoming out at FloorDb.
func ToDb(v float32) float64 {
	if v <= 0 {
		return FloorDb
	}
	return math.Max(FloorDb, 20*math.Log10(float64(v)))
}

// ReadFloat32 drains a little-endian 32-bit float stream.
func ReadFloat32(r io.Reader) ([]float32, error) {
	var out []float32
	buf := make([]byte, 32<<10)
	var carry []byte
	for {
		n, err := r.Read(buf)
		chunk := append(carry, buf[:n]...)
		whole := len(chunk) / 4 * 4
		for i := 0; i < whole; i += 4 {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(chunk[i:])))
		}
		carry = append(carry[:0:0], chunk[whole:]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
