// Package audio plays decoded track stems through ebiten's audio context.
package audio

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

var errNotLoaded = errors.New("audio: handle not loaded")

// Handle is one track's player. It satisfies transport.Handle and
// transport.MixApplier.
type Handle struct {
	sampleRate int
	client     *http.Client

	mu       sync.Mutex
	stage    *MixStage
	player   *ebitaudio.Player
	gainDb   float64
	pan      float64
	duration float64
}

type HandleOption func(*Handle)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) HandleOption {
	return func(h *Handle) { h.client = c }
}

func NewHandle(sampleRate int, opts ...HandleOption) *Handle {
	h := &Handle{sampleRate: sampleRate}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handle) Load(ctx context.Context, source string) (float64, error) {
	stream, err := Open(ctx, h.client, source, h.sampleRate)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	audioCtx, err := sharedAudioContext(h.sampleRate)
	if err != nil {
		return 0, err
	}
	stage := NewMixStage(stream)
	pl, err := audioCtx.NewPlayerF32(stage)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	stage.SetMix(h.gainDb, h.pan)
	h.stage = stage
	h.player = pl
	h.duration = Seconds(stream, h.sampleRate)
	return h.duration, nil
}

func (h *Handle) PlayFrom(offset float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.player == nil {
		return errNotLoaded
	}
	if err := h.player.SetPosition(time.Duration(offset * float64(time.Second))); err != nil {
		return err
	}
	h.player.Play()
	return nil
}

func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.player == nil {
		return errNotLoaded
	}
	h.player.Pause()
	return nil
}

func (h *Handle) SetGainDb(db float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gainDb = db
	if h.stage != nil {
		h.stage.SetMix(h.gainDb, h.pan)
	}
}

func (h *Handle) SetPan(pan float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pan = pan
	if h.stage != nil {
		h.stage.SetMix(h.gainDb, h.pan)
	}
}

func (h *Handle) ApplyMix(gainDb, pan float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gainDb, h.pan = gainDb, pan
	if h.stage != nil {
		h.stage.SetMix(gainDb, pan)
	}
}

// CurrentOffsetSeconds is what the listener hears now.
func (h *Handle) CurrentOffsetSeconds() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.player == nil {
		return 0
	}
	return h.player.Position().Seconds()
}

func (h *Handle) Duration() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.player == nil {
		return nil
	}
	h.player.Pause()
	err := h.player.Close()
	h.player = nil
	h.stage = nil
	return err
}
