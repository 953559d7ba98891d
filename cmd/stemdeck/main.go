package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cbegin/stemdeck-go"
	"github.com/cbegin/stemdeck-go/internal/catalog"
	"github.com/cbegin/stemdeck-go/internal/config"
	"github.com/cbegin/stemdeck-go/internal/logger"
	"github.com/cbegin/stemdeck-go/internal/midiremote"
	"github.com/cbegin/stemdeck-go/internal/musicclock"
)

func main() {
	env := config.Load()
	var (
		songPath   = flag.String("song", "", "path to a song file (.yaml, .yml or .json)")
		sampleRate = flag.Int("sample-rate", env.SampleRate, "output sample rate")
		seek       = flag.Float64("seek", 0, "start position in seconds")
		at         = flag.String("at", "", "start position as bar:beat:sixteenth")
		solo       = flag.String("solo", "", "comma separated track ids to solo")
		mute       = flag.String("mute", "", "comma separated track ids to mute")
		volumes    = flag.String("volume", "", "track volumes as id=percent,...")
		pans       = flag.String("pan", "", "track pans as id=percent,...")
		bounce     = flag.String("bounce", "", "render the mix to this WAV file instead of playing")
		limit      = flag.Float64("limit", 0, "with -bounce, master limiter ceiling in dBFS (negative enables)")
		midiIn     = flag.String("midi-in", env.MIDIIn, "MIDI input name prefix for remote control")
		logLevel   = flag.String("log-level", env.LogLevel, "debug|info|warn|error")
		tick       = flag.Duration("tick", env.TickInterval, "transport clock interval")
	)
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger.SetLogLevel(level)

	if strings.TrimSpace(*songPath) == "" {
		log.Fatal("-song is required")
	}
	sg, err := catalog.ReadSongFile(*songPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := applyMixFlags(&sg, *solo, *mute, *volumes, *pans); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *bounce != "" {
		if err := runBounce(ctx, sg, *sampleRate, *bounce, *limit); err != nil {
			log.Fatal(err)
		}
		return
	}

	policy, err := parseNoAudible(env.NoAudible)
	if err != nil {
		log.Fatal(err)
	}
	sess, err := stemdeck.NewSession(sg,
		stemdeck.WithSampleRate(*sampleRate),
		stemdeck.WithDriftTolerance(env.DriftTolerance),
		stemdeck.WithDriftCheckInterval(env.DriftInterval),
		stemdeck.WithNoAudiblePolicy(policy),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()

	if err := sess.Load(ctx); err != nil {
		log.Fatal(err)
	}
	if err := sess.WaitLoaded(ctx); err != nil {
		// failed tracks stay silent; play the rest
		logger.Warnf("%v", err)
	}

	if *at != "" {
		pos, err := musicclock.ParsePosition(*at)
		if err != nil {
			log.Fatal(err)
		}
		err = sess.SeekMusical(pos)
		if err != nil {
			log.Fatal(err)
		}
	} else if *seek > 0 {
		if err := sess.Seek(*seek); err != nil {
			log.Fatal(err)
		}
	}

	if *midiIn != "" {
		ids := make([]string, len(sg.Tracks))
		for i, t := range sg.Tracks {
			ids[i] = t.ID
		}
		remote := midiremote.New(sess, sg.Tempo, ids, midiremote.DefaultMapping())
		closeMIDI, err := openMIDI(*midiIn, remote)
		if err != nil {
			log.Fatal(err)
		}
		defer closeMIDI()
		fmt.Printf("listening for MIDI on %q\n", *midiIn)
	}

	ch := sess.Watch()
	if err := sess.Play(); err != nil {
		log.Fatal(err)
	}
	go func() {
		if err := sess.Run(ctx, *tick); err != nil && ctx.Err() == nil {
			logger.Errorf("clock: %v", err)
		}
	}()
	if err := printPositions(ctx, sess, ch, *midiIn != ""); err != nil {
		log.Fatal(err)
	}
}

// printPositions prints the musical position once per beat until the song
// ends. With a remote attached it keeps running until interrupted.
func printPositions(ctx context.Context, sess *stemdeck.Session, ch <-chan stemdeck.SessionEvent, remote bool) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	last := stemdeck.Position{}
	for {
		select {
		case <-ctx.Done():
			fmt.Println("interrupted")
			return nil
		case ev := <-ch:
			switch ev.Kind {
			case stemdeck.EventEnded:
				fmt.Printf("%s  %s  end of song\n", ev.Musical, musicclock.FormatSeconds(ev.Position))
				if !remote {
					return nil
				}
			case stemdeck.EventDriftCorrected:
				logger.Debugf("resynced %s (drift %.3fs)", ev.TrackID, ev.Drift)
			case stemdeck.EventStateChanged:
				logger.Infof("%s at %s", ev.State, ev.Musical)
			}
		case <-ticker.C:
			st := sess.Status()
			if !st.Playing {
				continue
			}
			if st.Musical.Bar != last.Bar || st.Musical.Beat != last.Beat {
				last = st.Musical
				fmt.Printf("%s  %s\n", st.Display, st.Time)
			}
		}
	}
}

func runBounce(ctx context.Context, sg stemdeck.Song, sampleRate int, path string, limit float64) error {
	res, err := stemdeck.Bounce(ctx, sg, sampleRate, stemdeck.BounceOptions{LimitCeilingDb: limit})
	if res == nil {
		return err
	}
	if err != nil {
		logger.Warnf("%v", err)
	}
	if err := os.WriteFile(path, stemdeck.EncodeWAVFloat32LE(res.Samples, res.SampleRate, 2), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s: %.2fs, peak %.1f dBFS, rms %.1f dBFS\n", path, res.Seconds(), res.PeakDb, res.RMSDb)
	return nil
}

func applyMixFlags(sg *stemdeck.Song, solo, mute, volumes, pans string) error {
	index := map[string]int{}
	for i, t := range sg.Tracks {
		index[t.ID] = i
	}
	track := func(id string) (*stemdeck.Track, error) {
		i, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("unknown track %q", id)
		}
		return &sg.Tracks[i], nil
	}
	for _, id := range splitList(solo) {
		t, err := track(id)
		if err != nil {
			return err
		}
		t.Solo = true
	}
	for _, id := range splitList(mute) {
		t, err := track(id)
		if err != nil {
			return err
		}
		t.Muted = true
	}
	for _, kv := range splitList(volumes) {
		id, v, err := parseAssignment(kv)
		if err != nil {
			return fmt.Errorf("-volume: %w", err)
		}
		t, err := track(id)
		if err != nil {
			return err
		}
		t.Volume = &v
	}
	for _, kv := range splitList(pans) {
		id, v, err := parseAssignment(kv)
		if err != nil {
			return fmt.Errorf("-pan: %w", err)
		}
		t, err := track(id)
		if err != nil {
			return err
		}
		t.Pan = v
	}
	return sg.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAssignment(kv string) (string, float64, error) {
	id, val, ok := strings.Cut(kv, "=")
	if !ok {
		return "", 0, fmt.Errorf("%q is not id=value", kv)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return "", 0, fmt.Errorf("%q: %v", kv, err)
	}
	return strings.TrimSpace(id), v, nil
}

func parseNoAudible(name string) (stemdeck.NoAudiblePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "error":
		return stemdeck.NoAudibleError, nil
	case "ignore":
		return stemdeck.NoAudibleIgnore, nil
	default:
		return 0, fmt.Errorf("invalid no-audible policy %q (expected error|ignore)", name)
	}
}
