package mix

import (
	"errors"
	"fmt"

	"github.com/cbegin/stemdeck-go/internal/errs"
)

// Sink receives effective mix updates, typically the transport forwarding them
// to loaded track handles.
type Sink interface {
	ApplyMix(trackID string, m EffectiveMix) error
}

// Mixer owns the stored mix state of a song's tracks. It is not safe for
// concurrent use; the transport serializes access.
type Mixer struct {
	channels  []Channel
	index     map[string]int
	effective []EffectiveMix
	sink      Sink
}

func NewMixer(channels []Channel, sink Sink) (*Mixer, error) {
	m := &Mixer{
		channels: make([]Channel, len(channels)),
		index:    make(map[string]int, len(channels)),
		sink:     sink,
	}
	for i, c := range channels {
		if c.ID == "" {
			return nil, errs.Invalid("channel %d has no id", i)
		}
		if _, dup := m.index[c.ID]; dup {
			return nil, errs.Invalid("duplicate channel id %q", c.ID)
		}
		if err := ValidateVolume(c.Volume); err != nil {
			return nil, fmt.Errorf("channel %q: %w", c.ID, err)
		}
		if err := ValidatePan(c.Pan); err != nil {
			return nil, fmt.Errorf("channel %q: %w", c.ID, err)
		}
		m.channels[i] = c
		m.index[c.ID] = i
	}
	m.effective = Resolve(m.channels)
	return m, nil
}

func (m *Mixer) SetVolume(id string, volume float64) error {
	if err := ValidateVolume(volume); err != nil {
		return err
	}
	return m.update(id, func(c *Channel) { c.Volume = volume })
}

func (m *Mixer) SetPan(id string, pan float64) error {
	if err := ValidatePan(pan); err != nil {
		return err
	}
	return m.update(id, func(c *Channel) { c.Pan = pan })
}

func (m *Mixer) SetMute(id string, muted bool) error {
	return m.update(id, func(c *Channel) { c.Muted = muted })
}

func (m *Mixer) SetSolo(id string, solo bool) error {
	return m.update(id, func(c *Channel) { c.Solo = solo })
}

func (m *Mixer) update(id string, apply func(*Channel)) error {
	i, ok := m.index[id]
	if !ok {
		return errs.Invalid("unknown track %q", id)
	}
	apply(&m.channels[i])
	next := Resolve(m.channels)
	prev := m.effective
	m.effective = next
	if m.sink == nil {
		return nil
	}
	var errList []error
	for j := range next {
		if next[j] == prev[j] {
			continue
		}
		if err := m.sink.ApplyMix(m.channels[j].ID, next[j]); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Channel returns the stored state of one track.
func (m *Mixer) Channel(id string) (Channel, bool) {
	i, ok := m.index[id]
	if !ok {
		return Channel{}, false
	}
	return m.channels[i], true
}

// Effective returns the current effective mix of one track.
func (m *Mixer) Effective(id string) (EffectiveMix, bool) {
	i, ok := m.index[id]
	if !ok {
		return EffectiveMix{}, false
	}
	return m.effective[i], true
}

func (m *Mixer) Audible(id string) bool {
	e, ok := m.Effective(id)
	return ok && e.Audible
}

// Snapshot returns a copy of every channel in song order.
func (m *Mixer) Snapshot() []Channel {
	out := make([]Channel, len(m.channels))
	copy(out, m.channels)
	return out
}

// IDs returns the track ids in song order.
func (m *Mixer) IDs() []string {
	out := make([]string, len(m.channels))
	for i, c := range m.channels {
		out[i] = c.ID
	}
	return out
}
