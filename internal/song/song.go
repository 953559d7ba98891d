// Package song defines the song and track records loaded into a session.
package song

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cbegin/stemdeck-go/internal/errs"
	"github.com/cbegin/stemdeck-go/internal/mix"
)

type Kind string

const (
	KindClick  Kind = "click"
	KindPiano  Kind = "piano"
	KindVocals Kind = "vocals"
	KindOther  Kind = "other"
)

// ParseKind accepts the track type labels used by song stores. Unknown labels
// map to KindOther.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "click", "metronome":
		return KindClick
	case "piano", "keys":
		return KindPiano
	case "vocals", "vocal", "all_vocals":
		return KindVocals
	default:
		return KindOther
	}
}

func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

type Track struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Kind   Kind   `json:"type" yaml:"type"`
	Source string `json:"filePath" yaml:"filePath"`
	// Volume is a percentage in [0, 100]; nil means mix.DefaultVolume.
	Volume *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
	Pan    float64  `json:"pan,omitempty" yaml:"pan,omitempty"`
	Muted  bool     `json:"isMuted,omitempty" yaml:"isMuted,omitempty"`
	Solo   bool     `json:"isSolo,omitempty" yaml:"isSolo,omitempty"`
}

// VolumePercent returns the track's starting volume.
func (t Track) VolumePercent() float64 {
	if t.Volume == nil {
		return mix.DefaultVolume
	}
	return *t.Volume
}

// Channel returns the track's starting mix state.
func (t Track) Channel() mix.Channel {
	return mix.Channel{ID: t.ID, Volume: t.VolumePercent(), Pan: t.Pan, Muted: t.Muted, Solo: t.Solo}
}

type Song struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	// Tempo is in beats per minute.
	Tempo                    int     `json:"bpm" yaml:"bpm"`
	TimeSignatureBeatsPerBar int     `json:"timeSignature" yaml:"timeSignature"`
	Voicing                  string  `json:"voicing,omitempty" yaml:"voicing,omitempty"`
	DurationSeconds          float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Tracks                   []Track `json:"tracks" yaml:"tracks"`
}

// UnmarshalJSON accepts numeric ids and the audioUrl alias for filePath, as
// browser song stores write them.
func (t *Track) UnmarshalJSON(b []byte) error {
	type plain Track
	aux := struct {
		*plain
		ID       json.RawMessage `json:"id"`
		AudioURL string          `json:"audioUrl"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	id, err := parseID(aux.ID)
	if err != nil {
		return fmt.Errorf("track: %w", err)
	}
	t.ID = id
	if t.Source == "" {
		t.Source = aux.AudioURL
	}
	return nil
}

func (s *Song) UnmarshalJSON(b []byte) error {
	type plain Song
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	id, err := parseID(aux.ID)
	if err != nil {
		return fmt.Errorf("song: %w", err)
	}
	s.ID = id
	return nil
}

// parseID reads a JSON string or number id. A missing or null id is empty.
func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errs.Invalid("id %s must be a string or a number", raw)
	}
	return n.String(), nil
}

// Summary is the listing view of a song.
type Summary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Voicing    string `json:"voicing,omitempty"`
	Tempo      int    `json:"bpm"`
	TrackCount int    `json:"trackCount"`
}

func (s Song) Summary() Summary {
	return Summary{ID: s.ID, Title: s.Title, Voicing: s.Voicing, Tempo: s.Tempo, TrackCount: len(s.Tracks)}
}

// Validate checks everything a session relies on.
func (s Song) Validate() error {
	if s.Tempo <= 0 {
		return errs.Invalid("song %q: tempo %d must be positive", s.ID, s.Tempo)
	}
	if s.TimeSignatureBeatsPerBar <= 0 {
		return errs.Invalid("song %q: beats per bar %d must be positive", s.ID, s.TimeSignatureBeatsPerBar)
	}
	if s.DurationSeconds < 0 {
		return errs.Invalid("song %q: negative duration", s.ID)
	}
	if len(s.Tracks) == 0 {
		return errs.Invalid("song %q has no tracks", s.ID)
	}
	seen := make(map[string]bool, len(s.Tracks))
	for i, t := range s.Tracks {
		if t.ID == "" {
			return errs.Invalid("song %q: track %d has no id", s.ID, i)
		}
		if seen[t.ID] {
			return errs.Invalid("song %q: duplicate track id %q", s.ID, t.ID)
		}
		seen[t.ID] = true
		if err := mix.ValidateVolume(t.VolumePercent()); err != nil {
			return fmt.Errorf("song %q track %q: %w", s.ID, t.ID, err)
		}
		if err := mix.ValidatePan(t.Pan); err != nil {
			return fmt.Errorf("song %q track %q: %w", s.ID, t.ID, err)
		}
	}
	return nil
}

// Track returns the track with the given id.
func (s Song) Track(id string) (Track, bool) {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}
