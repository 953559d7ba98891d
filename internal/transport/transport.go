// Package transport keeps a set of track handles playing in step with one
// authoritative clock.
package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cbegin/stemdeck-go/internal/errs"
	"github.com/cbegin/stemdeck-go/internal/mix"
)

type slot struct {
	id       string
	source   string
	handle   Handle
	load     LoadState
	loadErr  error
	duration float64
	running  bool
	// loading is true while a load goroutine owns the handle's lifetime.
	loading bool
}

// exhausted reports whether pos lies at or beyond the end of the slot's audio.
func (s *slot) exhausted(pos float64) bool {
	return s.load == LoadReady && pos >= s.duration
}

type Transport struct {
	mu     sync.Mutex
	cfg    Config
	mixer  *mix.Mixer
	slots  []*slot
	byID   map[string]*slot
	events []Event
	seq    uint64

	state       State
	position    float64
	duration    float64
	sinceDrift  float64
	closed      bool
	loadStarted bool
	cancelLoads context.CancelFunc
	loads       sync.WaitGroup
	loadDone    chan struct{}
}

// sink forwards mixer updates to handles. The transport lock is held by the
// caller of every mixer method.
type sink struct{ t *Transport }

func (s sink) ApplyMix(id string, m mix.EffectiveMix) error { return s.t.applyMix(id, m) }

// New builds a stopped transport with one handle per track.
func New(tracks []Track, factory HandleFactory, cfg Config) (*Transport, error) {
	if factory == nil {
		return nil, errors.New("transport: nil handle factory")
	}
	if cfg.DriftTolerance <= 0 {
		cfg.DriftTolerance = DefaultConfig().DriftTolerance
	}
	if cfg.DriftCheckInterval <= 0 {
		cfg.DriftCheckInterval = DefaultConfig().DriftCheckInterval
	}
	if cfg.Duration < 0 || math.IsNaN(cfg.Duration) {
		return nil, errs.Invalid("duration %v", cfg.Duration)
	}
	channels := make([]mix.Channel, len(tracks))
	for i, tr := range tracks {
		channels[i] = tr.Channel
	}
	t := &Transport{
		cfg:      cfg,
		byID:     make(map[string]*slot, len(tracks)),
		loadDone: make(chan struct{}),
		duration: cfg.Duration,
	}
	m, err := mix.NewMixer(channels, sink{t})
	if err != nil {
		return nil, err
	}
	t.mixer = m
	for _, tr := range tracks {
		h, err := factory(tr.ID)
		if err != nil {
			for _, s := range t.slots {
				_ = s.handle.Close()
			}
			return nil, fmt.Errorf("track %q: %w", tr.ID, err)
		}
		s := &slot{id: tr.ID, source: tr.Source, handle: h}
		t.slots = append(t.slots, s)
		t.byID[tr.ID] = s
	}
	return t, nil
}

// run serializes fn and delivers the events it queued once the lock is
// released.
func (t *Transport) run(fn func() error) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errs.ErrClosed
	}
	err := fn()
	events := t.events
	t.events = nil
	t.mu.Unlock()
	t.dispatch(events)
	return err
}

func (t *Transport) dispatch(events []Event) {
	if t.cfg.OnEvent == nil {
		return
	}
	for _, ev := range events {
		t.cfg.OnEvent(ev)
	}
}

func (t *Transport) emit(ev Event) {
	t.seq++
	ev.Seq = t.seq
	ev.State = t.state
	ev.Position = t.position
	t.events = append(t.events, ev)
}

func (t *Transport) setState(s State) {
	if t.state == s {
		return
	}
	t.state = s
	t.emit(Event{Kind: EventStateChanged})
}

// Load starts loading every track in the background and returns at once.
// Loads are only cancelled by Close.
func (t *Transport) Load(ctx context.Context) error {
	return t.run(func() error {
		if t.loadStarted {
			return nil
		}
		t.loadStarted = true
		ctx, t.cancelLoads = context.WithCancel(ctx)
		for _, s := range t.slots {
			s.load = LoadPending
			s.loading = true
			t.loads.Add(1)
			go t.loadTrack(ctx, s)
		}
		go func() {
			t.loads.Wait()
			close(t.loadDone)
		}()
		return nil
	})
}

func (t *Transport) loadTrack(ctx context.Context, s *slot) {
	defer t.loads.Done()
	dur, err := s.handle.Load(ctx, s.source)

	t.mu.Lock()
	s.loading = false
	if t.closed {
		t.mu.Unlock()
		_ = s.handle.Close()
		return
	}
	t.finishLoad(s, dur, err)
	events := t.events
	t.events = nil
	t.mu.Unlock()
	t.dispatch(events)
}

func (t *Transport) finishLoad(s *slot, dur float64, err error) {
	if err == nil && (dur < 0 || math.IsNaN(dur) || math.IsInf(dur, 0)) {
		err = fmt.Errorf("%w: invalid duration %v", errs.ErrDecode, dur)
	}
	if err != nil {
		s.load = LoadFailed
		s.loadErr = &errs.LoadError{TrackID: s.id, Err: err}
		t.emit(Event{Kind: EventLoadFailed, TrackID: s.id, Err: s.loadErr})
		return
	}
	s.load = LoadReady
	s.duration = dur
	t.recomputeDuration()
	em, _ := t.mixer.Effective(s.id)
	applyToHandle(s.handle, em)
	t.emit(Event{Kind: EventLoaded, TrackID: s.id})
	if t.state == Playing && em.Audible {
		if err := t.start(s); err != nil {
			_ = t.fail(err)
		}
	}
}

func (t *Transport) recomputeDuration() {
	if t.cfg.Duration > 0 {
		t.duration = t.cfg.Duration
	} else {
		d := 0.0
		for _, s := range t.slots {
			if s.load == LoadReady && s.duration > d {
				d = s.duration
			}
		}
		t.duration = d
	}
	if t.position > t.duration {
		t.position = t.duration
	}
}

// WaitLoaded blocks until every load has settled and returns the joined load
// failures. It returns nil at once when Load was never called.
func (t *Transport) WaitLoaded(ctx context.Context) error {
	t.mu.Lock()
	started := t.loadStarted
	t.mu.Unlock()
	if !started {
		return nil
	}
	select {
	case <-t.loadDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var errList []error
	for _, s := range t.slots {
		if s.loadErr != nil {
			errList = append(errList, s.loadErr)
		}
	}
	return errors.Join(errList...)
}

// start plays s from the current position. A slot whose audio has already
// ended is left stopped.
func (t *Transport) start(s *slot) error {
	if s.exhausted(t.position) {
		return nil
	}
	if err := s.handle.PlayFrom(t.position); err != nil {
		return fmt.Errorf("track %q: %w", s.id, err)
	}
	s.running = true
	return nil
}

// retire stops running slots whose audio ended before pos.
func (t *Transport) retire(pos float64) error {
	for _, s := range t.slots {
		if !s.running || !s.exhausted(pos) {
			continue
		}
		s.running = false
		if err := s.handle.Stop(); err != nil {
			return fmt.Errorf("track %q: %w", s.id, err)
		}
	}
	return nil
}

func (t *Transport) stopAll() error {
	var errList []error
	for _, s := range t.slots {
		if !s.running {
			continue
		}
		s.running = false
		if err := s.handle.Stop(); err != nil {
			errList = append(errList, fmt.Errorf("track %q: %w", s.id, err))
		}
	}
	return errors.Join(errList...)
}

// fail stops every handle and parks the transport at the current position.
func (t *Transport) fail(cause error) error {
	stopErr := t.stopAll()
	t.state = Paused
	t.emit(Event{Kind: EventStateChanged, Err: cause})
	return errors.Join(cause, stopErr)
}

func (t *Transport) endOfSong() {
	_ = t.stopAll()
	t.position = t.duration
	t.setState(Stopped)
	t.emit(Event{Kind: EventEnded})
}

func (t *Transport) playable() []*slot {
	var out []*slot
	for _, s := range t.slots {
		if s.load == LoadReady && t.mixer.Audible(s.id) {
			out = append(out, s)
		}
	}
	return out
}

func (t *Transport) Play() error {
	return t.run(func() error {
		if t.state == Playing {
			return fmt.Errorf("%w: play while playing", errs.ErrInvalidTransition)
		}
		targets := t.playable()
		if len(targets) == 0 {
			if t.cfg.NoAudible == NoAudibleIgnore {
				return nil
			}
			return errs.ErrNoAudibleTracks
		}
		if t.position >= t.duration {
			t.position = 0
		}
		for _, s := range targets {
			if err := t.start(s); err != nil {
				return t.fail(err)
			}
		}
		t.sinceDrift = 0
		t.setState(Playing)
		return nil
	})
}

func (t *Transport) Pause() error {
	return t.run(func() error {
		if t.state != Playing {
			return fmt.Errorf("%w: pause while %s", errs.ErrInvalidTransition, t.state)
		}
		err := t.stopAll()
		t.setState(Paused)
		return err
	})
}

// Stop halts playback and rewinds. It is valid in every state.
func (t *Transport) Stop() error {
	return t.run(func() error {
		err := t.stopAll()
		moved := t.position != 0
		t.position = 0
		if t.state != Stopped {
			t.setState(Stopped)
		} else if moved {
			t.emit(Event{Kind: EventStateChanged})
		}
		return err
	})
}

// Seek moves the clock to target, clamped to the song. While playing every
// running handle is repositioned; otherwise handles pick up the position on
// the next Play.
func (t *Transport) Seek(target float64) error {
	return t.run(func() error {
		if math.IsNaN(target) {
			return errs.Invalid("seek target is NaN")
		}
		target = math.Max(0, math.Min(target, t.duration))
		if t.state != Playing {
			return t.cue(target)
		}
		if target >= t.duration {
			t.endOfSong()
			return nil
		}
		t.position = target
		t.sinceDrift = 0
		if err := t.retire(target); err != nil {
			return t.fail(err)
		}
		for _, s := range t.slots {
			if s.running {
				if err := s.handle.PlayFrom(target); err != nil {
					return t.fail(fmt.Errorf("track %q: %w", s.id, err))
				}
				continue
			}
			// a stem that ran out before the seek comes back in
			if s.load == LoadReady && t.mixer.Audible(s.id) {
				if err := t.start(s); err != nil {
					return t.fail(err)
				}
			}
		}
		return nil
	})
}

// cue moves a transport that is not playing. Paused always sits strictly
// inside the song: the start is Stopped and the end is an end-of-song stop.
func (t *Transport) cue(target float64) error {
	switch {
	case target >= t.duration && t.state == Paused:
		t.endOfSong()
	case target >= t.duration:
		t.position = target
	case target == 0:
		t.position = 0
		t.setState(Stopped)
	default:
		t.position = target
		t.setState(Paused)
	}
	return nil
}

// Tick advances the clock by elapsed seconds of host time. It is a no-op
// unless playing.
func (t *Transport) Tick(elapsed float64) error {
	return t.run(func() error {
		if math.IsNaN(elapsed) || elapsed < 0 {
			return errs.Invalid("tick elapsed %v", elapsed)
		}
		if t.state != Playing {
			return nil
		}
		t.position += elapsed
		if t.position >= t.duration {
			t.endOfSong()
			return nil
		}
		if err := t.retire(t.position); err != nil {
			return t.fail(err)
		}
		t.sinceDrift += elapsed
		if t.sinceDrift < t.cfg.DriftCheckInterval {
			return nil
		}
		t.sinceDrift = 0
		return t.correctDrift()
	})
}

func (t *Transport) correctDrift() error {
	for _, s := range t.slots {
		if !s.running {
			continue
		}
		drift := s.handle.CurrentOffsetSeconds() - t.position
		if math.Abs(drift) <= t.cfg.DriftTolerance {
			continue
		}
		if err := s.handle.PlayFrom(t.position); err != nil {
			return t.fail(fmt.Errorf("track %q: resync: %w", s.id, err))
		}
		t.emit(Event{Kind: EventDriftCorrected, TrackID: s.id, Drift: drift})
	}
	return nil
}

func (t *Transport) applyMix(id string, m mix.EffectiveMix) error {
	s, ok := t.byID[id]
	if !ok || s.load != LoadReady {
		return nil
	}
	applyToHandle(s.handle, m)
	if t.state == Playing && m.Audible && !s.running {
		if err := t.start(s); err != nil {
			return t.fail(err)
		}
	}
	return nil
}

func (t *Transport) SetVolume(id string, volume float64) error {
	return t.run(func() error { return t.mixer.SetVolume(id, volume) })
}

func (t *Transport) SetPan(id string, pan float64) error {
	return t.run(func() error { return t.mixer.SetPan(id, pan) })
}

func (t *Transport) SetMute(id string, muted bool) error {
	return t.run(func() error { return t.mixer.SetMute(id, muted) })
}

func (t *Transport) SetSolo(id string, solo bool) error {
	return t.run(func() error { return t.mixer.SetSolo(id, solo) })
}

func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		State:    t.state,
		Playing:  t.state == Playing,
		Position: t.position,
		Duration: t.duration,
	}
}

func (t *Transport) Tracks() []TrackStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrackStatus, 0, len(t.slots))
	for _, s := range t.slots {
		ch, _ := t.mixer.Channel(s.id)
		em, _ := t.mixer.Effective(s.id)
		ts := TrackStatus{
			Channel:   ch,
			Effective: em,
			Load:      s.load,
			Duration:  s.duration,
			Running:   s.running,
		}
		if s.loadErr != nil {
			ts.Err = s.loadErr.Error()
		}
		out = append(out, ts)
	}
	return out
}

// Close stops and releases every handle. Loads still in flight are cancelled
// and their handles closed as they return; Close waits for them.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.cancelLoads != nil {
		t.cancelLoads()
	}
	errList := []error{t.stopAll()}
	for _, s := range t.slots {
		if s.loading {
			continue
		}
		if err := s.handle.Close(); err != nil {
			errList = append(errList, fmt.Errorf("track %q: %w", s.id, err))
		}
	}
	t.state = Stopped
	t.mu.Unlock()
	t.loads.Wait()
	return errors.Join(errList...)
}
