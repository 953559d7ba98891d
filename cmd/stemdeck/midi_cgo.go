//go:build cgo

package main

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cbegin/stemdeck-go/internal/midiremote"
)

func openMIDI(prefix string, r *midiremote.Remote) (func(), error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midi driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("midi inputs: %w", err)
	}
	in, ok := midiremote.FindIn(ins, prefix)
	if !ok {
		_ = drv.Close()
		return nil, fmt.Errorf("no MIDI input starting with %q", prefix)
	}
	stop, err := midiremote.Listen(in, r)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	return func() {
		stop()
		_ = in.Close()
		_ = drv.Close()
	}, nil
}
