package transport

import (
	"github.com/cbegin/stemdeck-go/internal/mix"
)

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// LoadState tracks a handle's load progress.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadPending
	LoadReady
	LoadFailed
)

func (l LoadState) String() string {
	switch l {
	case LoadIdle:
		return "idle"
	case LoadPending:
		return "loading"
	case LoadReady:
		return "ready"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (l LoadState) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// NoAudiblePolicy decides what Play does when nothing can be heard.
type NoAudiblePolicy int

const (
	// NoAudibleError makes Play return ErrNoAudibleTracks.
	NoAudibleError NoAudiblePolicy = iota
	// NoAudibleIgnore makes Play a silent no-op.
	NoAudibleIgnore
)

type EventKind int

const (
	EventStateChanged EventKind = iota
	EventEnded
	EventLoaded
	EventLoadFailed
	EventDriftCorrected
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state"
	case EventEnded:
		return "ended"
	case EventLoaded:
		return "loaded"
	case EventLoadFailed:
		return "load-failed"
	case EventDriftCorrected:
		return "drift-corrected"
	default:
		return "unknown"
	}
}

// Event is delivered to Config.OnEvent after the transport lock is released.
// Operations on different goroutines may deliver their events interleaved;
// Seq gives the order in which they happened.
type Event struct {
	Seq      uint64
	Kind     EventKind
	State    State
	Position float64
	TrackID  string
	// Drift is the handle offset minus the transport position, for
	// EventDriftCorrected.
	Drift float64
	Err   error
}

// Status is a snapshot of the transport clock.
type Status struct {
	State    State   `json:"state"`
	Playing  bool    `json:"playing"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

// TrackStatus is a snapshot of one track.
type TrackStatus struct {
	mix.Channel
	Effective mix.EffectiveMix `json:"effective"`
	Load      LoadState        `json:"load"`
	Duration  float64          `json:"duration"`
	Running   bool             `json:"running"`
	Err       string           `json:"error,omitempty"`
}

// Track is a track as the transport sees it: its stored mix and where its
// audio comes from.
type Track struct {
	mix.Channel
	Source string
}

type Config struct {
	// Duration overrides the derived song length when positive.
	Duration float64
	// DriftTolerance is the largest handle offset error left uncorrected.
	DriftTolerance float64
	// DriftCheckInterval is the played time between drift checks.
	DriftCheckInterval float64
	NoAudible          NoAudiblePolicy
	OnEvent            func(Event)
}

func DefaultConfig() Config {
	return Config{
		DriftTolerance:     0.030,
		DriftCheckInterval: 0.25,
		NoAudible:          NoAudibleError,
	}
}
