//go:build !cgo

package main

import (
	"errors"

	"github.com/cbegin/stemdeck-go/internal/midiremote"
)

// with no cgo there is no MIDI driver
func openMIDI(string, *midiremote.Remote) (func(), error) {
	return nil, errors.New("MIDI input needs a cgo build")
}
