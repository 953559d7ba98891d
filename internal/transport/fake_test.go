package transport

import (
	"context"
	"math"
	"sync"
)

type fakeHandle struct {
	mu       sync.Mutex
	duration float64
	loadErr  error
	gate     chan struct{}
	playErr  error

	loaded  bool
	playing bool
	closed  bool
	offset  float64
	gainDb  float64
	pan     float64
	plays   []float64
	stops   int
	applies int
}

func (h *fakeHandle) Load(ctx context.Context, source string) (float64, error) {
	if h.gate != nil {
		select {
		case <-h.gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loadErr != nil {
		return 0, h.loadErr
	}
	h.loaded = true
	return h.duration, nil
}

func (h *fakeHandle) PlayFrom(offset float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playErr != nil {
		return h.playErr
	}
	h.playing = true
	h.offset = offset
	h.plays = append(h.plays, offset)
	return nil
}

func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	h.stops++
	return nil
}

func (h *fakeHandle) SetGainDb(db float64) {
	h.mu.Lock()
	h.gainDb = db
	h.mu.Unlock()
}

func (h *fakeHandle) SetPan(p float64) {
	h.mu.Lock()
	h.pan = p
	h.mu.Unlock()
}

func (h *fakeHandle) ApplyMix(db, p float64) {
	h.mu.Lock()
	h.gainDb, h.pan = db, p
	h.applies++
	h.mu.Unlock()
}

func (h *fakeHandle) CurrentOffsetSeconds() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.playing = false
	return nil
}

func (h *fakeHandle) setOffset(v float64) {
	h.mu.Lock()
	h.offset = v
	h.mu.Unlock()
}

type fakeState struct {
	loaded  bool
	playing bool
	closed  bool
	offset  float64
	gainDb  float64
	pan     float64
	plays   []float64
	stops   int
	applies int
}

func (h *fakeHandle) snapshot() fakeState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fakeState{
		loaded:  h.loaded,
		playing: h.playing,
		closed:  h.closed,
		offset:  h.offset,
		gainDb:  h.gainDb,
		pan:     h.pan,
		plays:   append([]float64(nil), h.plays...),
		stops:   h.stops,
		applies: h.applies,
	}
}

type fakeSet map[string]*fakeHandle

func (f fakeSet) factory(id string) (Handle, error) {
	h, ok := f[id]
	if !ok {
		h = &fakeHandle{duration: 30}
		f[id] = h
	}
	return h, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func nan() float64 { return math.NaN() }
