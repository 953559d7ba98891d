// Package errs holds the error values shared by the clock, mixer and transport.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter reports an out-of-range volume, pan, tempo or position.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidTransition reports a transport operation not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrDecode reports track audio that could not be decoded.
	ErrDecode = errors.New("decode error")
	// ErrUnreachableSource reports track audio that could not be opened or fetched.
	ErrUnreachableSource = errors.New("unreachable source")
	// ErrNoAudibleTracks reports a play request with nothing to hear.
	ErrNoAudibleTracks = errors.New("no audible tracks")
	// ErrClosed reports use of a session after teardown.
	ErrClosed = errors.New("session closed")
)

// Invalid wraps ErrInvalidParameter with a formatted detail.
func Invalid(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, a...))
}

// LoadError is returned when a track's audio fails to load. Err wraps
// ErrDecode or ErrUnreachableSource.
type LoadError struct {
	TrackID string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("track %q: %v", e.TrackID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
