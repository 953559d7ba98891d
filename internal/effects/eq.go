package effects

import "math"

// EQ3Band is a crossover tone control: low shelf, mid and high shelf with
// gains in dB.
type EQ3Band struct {
	lowGain  float32
	midGain  float32
	highGain float32
	lpAlpha  float32
	hpAlpha  float32
	lpL, lpR float32
	hpL, hpR float32
}

// NewEQ3Band splits the signal at lowFreq and highFreq (Hz).
func NewEQ3Band(sampleRate int, lowDb, midDb, highDb, lowFreq, highFreq float64) *EQ3Band {
	dt := 1.0 / float64(sampleRate)
	lpRC := 1.0 / (2.0 * math.Pi * lowFreq)
	hpRC := 1.0 / (2.0 * math.Pi * highFreq)
	return &EQ3Band{
		lowGain:  dbGain(lowDb),
		midGain:  dbGain(midDb),
		highGain: dbGain(highDb),
		lpAlpha:  float32(dt / (lpRC + dt)),
		hpAlpha:  float32(dt / (hpRC + dt)),
	}
}

func dbGain(db float64) float32 {
	return float32(math.Pow(10, db/20))
}

func (eq *EQ3Band) Process(l, r float32) (float32, float32) {
	eq.lpL += eq.lpAlpha * (l - eq.lpL)
	eq.lpR += eq.lpAlpha * (r - eq.lpR)
	lowL, lowR := eq.lpL, eq.lpR

	// hp state tracks everything below highFreq
	eq.hpL += eq.hpAlpha * (l - eq.hpL)
	eq.hpR += eq.hpAlpha * (r - eq.hpR)
	highL := l - eq.hpL
	highR := r - eq.hpR

	midL := l - lowL - highL
	midR := r - lowR - highR

	return lowL*eq.lowGain + midL*eq.midGain + highL*eq.highGain,
		lowR*eq.lowGain + midR*eq.midGain + highR*eq.highGain
}

func (eq *EQ3Band) Reset() {
	eq.lpL, eq.lpR = 0, 0
	eq.hpL, eq.hpR = 0, 0
}
