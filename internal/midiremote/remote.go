// Package midiremote drives a playback session from a MIDI controller or a
// DAW sending MIDI transport messages.
package midiremote

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/cbegin/stemdeck-go/internal/errs"
	"github.com/cbegin/stemdeck-go/internal/logger"
	"github.com/cbegin/stemdeck-go/internal/musicclock"
)

// Target is the session surface the remote controls.
type Target interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(trackID string, percent float64) error
	SetPan(trackID string, percent float64) error
	SetMute(trackID string, muted bool) error
	SetSolo(trackID string, solo bool) error
}

// Mapping assigns controller numbers. The MIDI channel of a control change
// selects the track: channel 1 is the first track.
type Mapping struct {
	VolumeCC uint8
	PanCC    uint8
	MuteCC   uint8
	SoloCC   uint8
}

// DefaultMapping uses the General MIDI volume and pan controllers and two
// general purpose buttons for mute and solo.
func DefaultMapping() Mapping {
	return Mapping{VolumeCC: 7, PanCC: 10, MuteCC: 80, SoloCC: 81}
}

// Remote translates MIDI messages into session calls.
//
//	Start     seek to 0 and play
//	Continue  play from the current position
//	Stop      pause, keeping the position
//	SPP       seek to the given sixteenth
//	CC        volume, pan, mute and solo per track
type Remote struct {
	target  Target
	tempo   int
	tracks  []string
	mapping Mapping
}

func New(target Target, tempo int, trackIDs []string, mapping Mapping) *Remote {
	return &Remote{target: target, tempo: tempo, tracks: trackIDs, mapping: mapping}
}

// Handle applies one message. Messages the remote does not map are ignored.
func (r *Remote) Handle(msg midi.Message) error {
	var (
		channel, controller, value uint8
		spp                        uint16
	)
	switch {
	case msg.Is(midi.StartMsg):
		if err := r.target.Seek(0); err != nil {
			return err
		}
		return ignoreTransition(r.target.Play())
	case msg.Is(midi.ContinueMsg):
		return ignoreTransition(r.target.Play())
	case msg.Is(midi.StopMsg):
		return ignoreTransition(r.target.Pause())
	case msg.GetSPP(&spp):
		return r.target.Seek(float64(spp) * musicclock.SixteenthDuration(r.tempo))
	case msg.GetControlChange(&channel, &controller, &value):
		return r.controlChange(channel, controller, value)
	}
	return nil
}

func (r *Remote) controlChange(channel, controller, value uint8) error {
	if int(channel) >= len(r.tracks) {
		return nil
	}
	id := r.tracks[channel]
	switch controller {
	case r.mapping.VolumeCC:
		return r.target.SetVolume(id, VolumePercent(value))
	case r.mapping.PanCC:
		return r.target.SetPan(id, PanPercent(value))
	case r.mapping.MuteCC:
		return r.target.SetMute(id, value >= 64)
	case r.mapping.SoloCC:
		return r.target.SetSolo(id, value >= 64)
	}
	return nil
}

// Play while playing and pause while paused are expected from a DAW
// echoing its own transport; they are not errors here.
func ignoreTransition(err error) error {
	if errors.Is(err, errs.ErrInvalidTransition) {
		return nil
	}
	return err
}

// VolumePercent maps a 7-bit controller value onto [0, 100].
func VolumePercent(v uint8) float64 {
	return float64(min(v, 127)) * 100 / 127
}

// PanPercent maps a 7-bit controller value onto [-50, 50] with 64 at centre.
func PanPercent(v uint8) float64 {
	p := (float64(min(v, 127)) - 64) * 50 / 64
	return max(-50, min(50, p))
}

// Listen opens in if needed and feeds its messages to r until stop is called.
func Listen(in drivers.In, r *Remote) (stop func(), err error) {
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("opening MIDI input %s: %w", in, err)
		}
	}
	return midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		if err := r.Handle(msg); err != nil {
			logger.Warnf("midi: %s: %v", msg, err)
		}
	})
}

// FindIn returns the first input whose name starts with prefix.
func FindIn(ins []drivers.In, prefix string) (drivers.In, bool) {
	for _, in := range ins {
		if strings.HasPrefix(in.String(), prefix) {
			return in, true
		}
	}
	return nil, false
}
