package midiremote

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/stemdeck-go/internal/errs"
)

type recorder struct {
	calls   []string
	playing bool
}

func (r *recorder) Play() error {
	if r.playing {
		return fmt.Errorf("%w: play while playing", errs.ErrInvalidTransition)
	}
	r.playing = true
	r.calls = append(r.calls, "play")
	return nil
}

func (r *recorder) Pause() error {
	if !r.playing {
		return fmt.Errorf("%w: pause while stopped", errs.ErrInvalidTransition)
	}
	r.playing = false
	r.calls = append(r.calls, "pause")
	return nil
}

func (r *recorder) Seek(s float64) error {
	r.calls = append(r.calls, fmt.Sprintf("seek %.3f", s))
	return nil
}

func (r *recorder) SetVolume(id string, v float64) error {
	r.calls = append(r.calls, fmt.Sprintf("volume %s %.1f", id, v))
	return nil
}

func (r *recorder) SetPan(id string, v float64) error {
	r.calls = append(r.calls, fmt.Sprintf("pan %s %.1f", id, v))
	return nil
}

func (r *recorder) SetMute(id string, on bool) error {
	r.calls = append(r.calls, fmt.Sprintf("mute %s %v", id, on))
	return nil
}

func (r *recorder) SetSolo(id string, on bool) error {
	r.calls = append(r.calls, fmt.Sprintf("solo %s %v", id, on))
	return nil
}

func newRemote() (*Remote, *recorder) {
	rec := &recorder{}
	return New(rec, 120, []string{"click", "piano", "alto"}, DefaultMapping()), rec
}

func TestTransportMessages(t *testing.T) {
	r, rec := newRemote()
	require.NoError(t, r.Handle(midi.Start()))
	require.NoError(t, r.Handle(midi.Start()), "restart while playing only seeks")
	require.NoError(t, r.Handle(midi.Stop()))
	require.NoError(t, r.Handle(midi.Stop()), "stop while paused is ignored")
	require.NoError(t, r.Handle(midi.Continue()))
	assert.Equal(t, []string{"seek 0.000", "play", "seek 0.000", "pause", "play"}, rec.calls)
}

func TestSongPositionPointer(t *testing.T) {
	r, rec := newRemote()
	// 16 sixteenths at 120 BPM is two seconds
	require.NoError(t, r.Handle(midi.SPP(16)))
	require.NoError(t, r.Handle(midi.SPP(0)))
	assert.Equal(t, []string{"seek 2.000", "seek 0.000"}, rec.calls)
}

func TestControlChanges(t *testing.T) {
	r, rec := newRemote()
	require.NoError(t, r.Handle(midi.ControlChange(1, 7, 127)))
	require.NoError(t, r.Handle(midi.ControlChange(2, 10, 0)))
	require.NoError(t, r.Handle(midi.ControlChange(0, 80, 127)))
	require.NoError(t, r.Handle(midi.ControlChange(0, 81, 10)))
	require.NoError(t, r.Handle(midi.ControlChange(9, 7, 100)), "no tenth track")
	require.NoError(t, r.Handle(midi.ControlChange(0, 1, 100)), "unmapped controller")
	require.NoError(t, r.Handle(midi.NoteOn(0, 60, 100)), "notes are ignored")
	assert.Equal(t, []string{
		"volume piano 100.0",
		"pan alto -50.0",
		"mute click true",
		"solo click false",
	}, rec.calls)
}

func TestValueScaling(t *testing.T) {
	assert.Equal(t, 0.0, VolumePercent(0))
	assert.Equal(t, 100.0, VolumePercent(127))
	assert.Equal(t, -50.0, PanPercent(0))
	assert.Equal(t, 0.0, PanPercent(64))
	assert.InDelta(t, 49.2, PanPercent(127), 0.1)
}
