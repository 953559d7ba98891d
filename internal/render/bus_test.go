package render

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSumsAndGrows(t *testing.T) {
	b := NewBus(1)
	b.Add([]float32{0.25, -0.25})
	b.Add([]float32{0.25, 0.5, 0.1, 0.1})
	assert.Equal(t, []float32{0.5, 0.25, 0.1, 0.1}, b.Samples())
	assert.Equal(t, 2, b.Frames())

	b.Scale(2)
	assert.Equal(t, []float32{1, 0.5, 0.2, 0.2}, b.Samples())

	b.Truncate(3)
	assert.Equal(t, 3, b.Frames())
	assert.Equal(t, float32(0), b.Samples()[5])
	b.Truncate(1)
	assert.Equal(t, []float32{1, 0.5}, b.Samples())
}

func TestPeakAndRMS(t *testing.T) {
	s := []float32{0.5, -0.75, 0.25, 0}
	assert.Equal(t, float32(0.75), Peak(s))
	assert.Equal(t, float32(-0.75), s[1], "Peak must not modify its input")
	assert.InDelta(t, math.Sqrt((0.25+0.5625+0.0625)/4), RMS(s), 1e-6)
	assert.Zero(t, Peak(nil))
	assert.Zero(t, RMS(nil))
}

func TestToDb(t *testing.T) {
	assert.InDelta(t, -6.0206, ToDb(0.5), 1e-4)
	assert.Equal(t, FloorDb, ToDb(0))
}

func TestReadFloat32HandlesShortReads(t *testing.T) {
	want := []float32{0.1, -0.2, 0.3, 1}
	var raw bytes.Buffer
	for _, v := range want {
		require.NoError(t, binary.Write(&raw, binary.LittleEndian, v))
	}
	got, err := ReadFloat32(iotest.OneByteReader(&raw))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
