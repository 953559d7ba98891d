package stemdeck

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net/http"

	intaudio "github.com/cbegin/stemdeck-go/internal/audio"
	"github.com/cbegin/stemdeck-go/internal/effects"
	"github.com/cbegin/stemdeck-go/internal/errs"
	"github.com/cbegin/stemdeck-go/internal/logger"
	"github.com/cbegin/stemdeck-go/internal/mix"
	"github.com/cbegin/stemdeck-go/internal/render"
)

// BounceOptions tunes an offline mixdown.
type BounceOptions struct {
	HTTPClient *http.Client
	// Duration overrides the song length in seconds when positive.
	Duration float64
	// Master tone in dB per band.
	LowDb, MidDb, HighDb float64
	// LimitCeilingDb enables the master limiter when negative.
	LimitCeilingDb float64
}

// BounceResult is a stereo mixdown with its meter readings.
type BounceResult struct {
	Samples    []float32
	SampleRate int
	PeakDb     float64
	RMSDb      float64
	// Skipped lists tracks whose source could not be loaded.
	Skipped []string
}

func (r *BounceResult) Frames() int { return len(r.Samples) / 2 }

func (r *BounceResult) Seconds() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(r.Frames()) / float64(r.SampleRate)
}

// Bounce renders the song's current mix to interleaved stereo float32,
// honoring solo, mute, volume and pan exactly as a playing session does.
// Tracks that fail to load are skipped; their errors are joined into the
// returned error alongside a usable result.
func Bounce(ctx context.Context, s Song, sampleRate int, opts BounceOptions) (*BounceResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, errs.Invalid("sample rate %d must be positive", sampleRate)
	}
	channels := make([]mix.Channel, len(s.Tracks))
	for i, t := range s.Tracks {
		channels[i] = t.Channel()
	}
	eff := mix.Resolve(channels)

	res := &BounceResult{SampleRate: sampleRate}
	bus := render.NewBus(0)
	longest := 0
	var loadErrs []error
	for i, t := range s.Tracks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec, err := intaudio.Open(ctx, opts.HTTPClient, t.Source, sampleRate)
		if err != nil {
			logger.Warnf("bounce: skipping track %s: %v", t.ID, err)
			res.Skipped = append(res.Skipped, t.ID)
			loadErrs = append(loadErrs, &errs.LoadError{TrackID: t.ID, Err: err})
			continue
		}
		frames := intaudio.Frames(dec)
		if frames > longest {
			longest = frames
		}
		if !eff[i].Audible {
			logger.Debugf("bounce: track %s is silent in this mix", t.ID)
			continue
		}
		stage := intaudio.NewMixStage(dec)
		stage.SetMix(eff[i].OutputGainDb(), eff[i].Pan)
		samples, err := render.ReadFloat32(stage)
		if err != nil {
			res.Skipped = append(res.Skipped, t.ID)
			loadErrs = append(loadErrs, &errs.LoadError{TrackID: t.ID, Err: err})
			continue
		}
		bus.Add(samples)
	}

	length := opts.Duration
	if length <= 0 {
		length = s.DurationSeconds
	}
	if length > 0 {
		bus.Truncate(int(math.Round(length * float64(sampleRate))))
	} else {
		bus.Truncate(longest)
	}

	effects.NewMaster(sampleRate, effects.MasterConfig{
		LowDb:          opts.LowDb,
		MidDb:          opts.MidDb,
		HighDb:         opts.HighDb,
		LimitCeilingDb: opts.LimitCeilingDb,
	}).Apply(bus.Samples())

	res.Samples = bus.Samples()
	res.PeakDb = render.ToDb(render.Peak(res.Samples))
	res.RMSDb = render.ToDb(render.RMS(res.Samples))
	logger.Infof("bounce: %s %.2fs peak %.1f dBFS rms %.1f dBFS", s.ID, res.Seconds(), res.PeakDb, res.RMSDb)
	return res, errors.Join(loadErrs...)
}

// EncodeWAVFloat32LE wraps interleaved float32 samples in a WAVE_FORMAT_IEEE_FLOAT
// RIFF container.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
