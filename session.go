package stemdeck

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	intaudio "github.com/cbegin/stemdeck-go/internal/audio"
	"github.com/cbegin/stemdeck-go/internal/errs"
	"github.com/cbegin/stemdeck-go/internal/musicclock"
	"github.com/cbegin/stemdeck-go/internal/song"
	"github.com/cbegin/stemdeck-go/internal/transport"
)

type (
	Song      = song.Song
	Track     = song.Track
	TrackKind = song.Kind
	Summary   = song.Summary
	Position  = musicclock.Position
	State     = transport.State
	EventKind = transport.EventKind

	// Handle is the per-track audio output a session drives.
	Handle = transport.Handle
	// HandleFactory creates a track's Handle.
	HandleFactory = transport.HandleFactory
	// TrackStatus reports one track's mix and load progress.
	TrackStatus = transport.TrackStatus
)

const (
	Stopped = transport.Stopped
	Playing = transport.Playing
	Paused  = transport.Paused

	KindClick  = song.KindClick
	KindPiano  = song.KindPiano
	KindVocals = song.KindVocals
	KindOther  = song.KindOther

	EventStateChanged   = transport.EventStateChanged
	EventEnded          = transport.EventEnded
	EventLoaded         = transport.EventLoaded
	EventLoadFailed     = transport.EventLoadFailed
	EventDriftCorrected = transport.EventDriftCorrected
)

var (
	ErrInvalidParameter  = errs.ErrInvalidParameter
	ErrInvalidTransition = errs.ErrInvalidTransition
	ErrDecode            = errs.ErrDecode
	ErrUnreachableSource = errs.ErrUnreachableSource
	ErrNoAudibleTracks   = errs.ErrNoAudibleTracks
	ErrClosed            = errs.ErrClosed
)

// NoAudiblePolicy selects what Play does when no track can be heard.
type NoAudiblePolicy = transport.NoAudiblePolicy

const (
	NoAudibleError  = transport.NoAudibleError
	NoAudibleIgnore = transport.NoAudibleIgnore
)

// SessionEvent carries transport events from Watch().
type SessionEvent struct {
	Seq      uint64
	Kind     EventKind
	State    State
	Position float64
	Musical  Position
	TrackID  string
	Drift    float64
	Err      error
}

// Status is a display-ready snapshot of a session.
type Status struct {
	transport.Status
	SongID      string        `json:"songId"`
	Title       string        `json:"title"`
	Tempo       int           `json:"bpm"`
	BeatsPerBar int           `json:"timeSignature"`
	Musical     Position      `json:"musical"`
	Display     string        `json:"display"`
	Time        string        `json:"time"`
	Tracks      []TrackStatus `json:"tracks"`
}

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	sampleRate     int
	factory        HandleFactory
	httpClient     *http.Client
	driftTolerance float64
	driftInterval  float64
	noAudible      NoAudiblePolicy
	hook           func(SessionEvent)
}

func defaultSessionConfig() sessionConfig {
	d := transport.DefaultConfig()
	return sessionConfig{
		sampleRate:     48000,
		driftTolerance: d.DriftTolerance,
		driftInterval:  d.DriftCheckInterval,
		noAudible:      d.NoAudible,
	}
}

// WithSampleRate sets the output rate of the default ebiten-backed handles.
func WithSampleRate(rate int) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.sampleRate = rate
	}
}

// WithHandleFactory replaces the default ebiten-backed handles.
func WithHandleFactory(f HandleFactory) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.factory = f
	}
}

func WithHTTPClient(c *http.Client) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.httpClient = c
	}
}

// WithDriftTolerance sets the largest handle offset error, in seconds, that is
// left alone.
func WithDriftTolerance(seconds float64) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.driftTolerance = seconds
	}
}

// WithDriftCheckInterval sets how much played time passes between drift checks.
func WithDriftCheckInterval(seconds float64) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.driftInterval = seconds
	}
}

func WithNoAudiblePolicy(p NoAudiblePolicy) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.noAudible = p
	}
}

// WithEventHook installs a callback invoked synchronously for every event,
// after the session lock is released. Keep it brief.
func WithEventHook(hook func(SessionEvent)) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.hook = hook
	}
}

// Session is one song loaded for playback: a transport, its mixer and one
// handle per track.
type Session struct {
	song      Song
	tr        *transport.Transport
	hook      func(SessionEvent)
	mu        sync.Mutex
	done      chan struct{}
	stateSeq  uint64
	closed    bool
	eventCh   chan SessionEvent
	eventChMu sync.Mutex
}

func NewSession(s Song, opts ...SessionOption) (*Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errs.Invalid("sample rate %d must be positive", cfg.sampleRate)
	}
	factory := cfg.factory
	if factory == nil {
		rate, client := cfg.sampleRate, cfg.httpClient
		factory = func(string) (Handle, error) {
			return intaudio.NewHandle(rate, intaudio.WithHTTPClient(client)), nil
		}
	}
	sess := &Session{song: s, hook: cfg.hook}
	tracks := make([]transport.Track, len(s.Tracks))
	for i, t := range s.Tracks {
		tracks[i] = transport.Track{Channel: t.Channel(), Source: t.Source}
	}
	tr, err := transport.New(tracks, factory, transport.Config{
		Duration:           s.DurationSeconds,
		DriftTolerance:     cfg.driftTolerance,
		DriftCheckInterval: cfg.driftInterval,
		NoAudible:          cfg.noAudible,
		OnEvent:            sess.onTransportEvent,
	})
	if err != nil {
		return nil, err
	}
	sess.tr = tr
	return sess, nil
}

func (s *Session) onTransportEvent(ev transport.Event) {
	out := SessionEvent{
		Seq:      ev.Seq,
		Kind:     ev.Kind,
		State:    ev.State,
		Position: ev.Position,
		Musical:  musicclock.ToMusicalPosition(ev.Position, s.song.Tempo, s.song.TimeSignatureBeatsPerBar),
		TrackID:  ev.TrackID,
		Drift:    ev.Drift,
		Err:      ev.Err,
	}
	if ev.Kind == EventStateChanged {
		s.trackState(ev)
	}
	if s.hook != nil {
		s.hook(out)
	}
	s.sendEvent(out)
}

// trackState arms or releases Wait. A state change that arrives after a newer
// one was already seen is stale and ignored.
func (s *Session) trackState(ev transport.Event) {
	s.mu.Lock()
	if s.closed || ev.Seq < s.stateSeq {
		s.mu.Unlock()
		return
	}
	s.stateSeq = ev.Seq
	var done chan struct{}
	switch ev.State {
	case Playing:
		if s.done == nil {
			s.done = make(chan struct{})
		}
	case Stopped:
		done, s.done = s.done, nil
	}
	s.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (s *Session) sendEvent(ev SessionEvent) {
	s.eventChMu.Lock()
	ch := s.eventCh
	s.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (s *Session) signalDone() {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// Song returns the song the session was built from.
func (s *Session) Song() Song { return s.song }

// Load starts fetching and decoding every track in the background.
func (s *Session) Load(ctx context.Context) error { return s.tr.Load(ctx) }

// WaitLoaded blocks until all loads settle and returns the joined failures.
// Failed tracks stay silent for the rest of the session.
func (s *Session) WaitLoaded(ctx context.Context) error { return s.tr.WaitLoaded(ctx) }

func (s *Session) Play() error  { return s.tr.Play() }
func (s *Session) Pause() error { return s.tr.Pause() }
func (s *Session) Stop() error  { return s.tr.Stop() }

// Seek moves the playhead to seconds, clamped to the song.
func (s *Session) Seek(seconds float64) error { return s.tr.Seek(seconds) }

// SeekMusical moves the playhead to the start of a bar:beat:sixteenth.
func (s *Session) SeekMusical(pos Position) error {
	secs, err := musicclock.ToSeconds(pos, s.song.Tempo, s.song.TimeSignatureBeatsPerBar)
	if err != nil {
		return err
	}
	return s.tr.Seek(secs)
}

// SeekPixel seeks from a pointer position on a timeline of the given width.
func (s *Session) SeekPixel(x, width float64) error {
	ppb := musicclock.PixelsPerBeat(width, s.song.TimeSignatureBeatsPerBar)
	secs, err := musicclock.XToSeconds(x, ppb, s.song.Tempo)
	if err != nil {
		return err
	}
	return s.tr.Seek(secs)
}

// Tick advances the clock by elapsed host time.
func (s *Session) Tick(elapsed time.Duration) error {
	return s.tr.Tick(elapsed.Seconds())
}

func (s *Session) SetVolume(trackID string, percent float64) error {
	return s.tr.SetVolume(trackID, percent)
}

func (s *Session) SetPan(trackID string, percent float64) error {
	return s.tr.SetPan(trackID, percent)
}

func (s *Session) SetMute(trackID string, muted bool) error {
	return s.tr.SetMute(trackID, muted)
}

func (s *Session) SetSolo(trackID string, solo bool) error {
	return s.tr.SetSolo(trackID, solo)
}

// Position returns the playhead in seconds.
func (s *Session) Position() float64 { return s.tr.Status().Position }

func (s *Session) MusicalPosition() Position {
	return musicclock.ToMusicalPosition(s.Position(), s.song.Tempo, s.song.TimeSignatureBeatsPerBar)
}

func (s *Session) Status() Status {
	st := s.tr.Status()
	pos := musicclock.ToMusicalPosition(st.Position, s.song.Tempo, s.song.TimeSignatureBeatsPerBar)
	return Status{
		Status:      st,
		SongID:      s.song.ID,
		Title:       s.song.Title,
		Tempo:       s.song.Tempo,
		BeatsPerBar: s.song.TimeSignatureBeatsPerBar,
		Musical:     pos,
		Display:     pos.String(),
		Time:        musicclock.FormatSeconds(st.Position),
		Tracks:      s.tr.Tracks(),
	}
}

// Watch returns a channel that receives session events: state changes,
// end of song, track loads and drift corrections.
//
// The channel is buffered (cap 8); events are dropped when it is full.
// Only the most recent Watch() channel receives events.
func (s *Session) Watch() <-chan SessionEvent {
	ch := make(chan SessionEvent, 8)
	s.eventChMu.Lock()
	s.eventCh = ch
	s.eventChMu.Unlock()
	return ch
}

// Wait blocks until the current playback reaches the end of the song, is
// stopped, or the session is closed. A pause does not end the wait. Wait
// returns immediately if nothing is playing.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Run drives Tick from a ticker until ctx is done or the session is closed.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errs.Invalid("tick interval %v must be positive", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if err := s.Tick(elapsed); err != nil {
				if errors.Is(err, errs.ErrClosed) {
					return nil
				}
				return err
			}
		}
	}
}

// Close tears the session down. Every handle is stopped and released before
// Close returns.
func (s *Session) Close() error {
	err := s.tr.Close()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signalDone()
	return err
}
