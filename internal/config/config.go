package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port         int
	AllowOrigin  string // websocket Origin allowed besides same-host; "*" allows any
	TickInterval time.Duration

	// Catalog
	SongsDir    string
	DatabaseURL string // Postgres catalog when set, else SongsDir
	RedisURL    string // cache and event publishing when set
	CacheTTL    time.Duration

	// Playback
	SampleRate     int
	DriftTolerance float64 // seconds
	DriftInterval  float64 // seconds of playback between drift checks
	NoAudible      string  // "error" or "ignore"

	LogLevel string
	MIDIIn   string // input port name prefix; empty disables MIDI
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:         envInt("STEMDECK_PORT", 8080),
		AllowOrigin:  envStr("STEMDECK_ALLOW_ORIGIN", ""),
		TickInterval: envDuration("STEMDECK_TICK_INTERVAL", 20*time.Millisecond),

		SongsDir:    envStr("STEMDECK_SONGS_DIR", "songs"),
		DatabaseURL: envStr("STEMDECK_DATABASE_URL", ""),
		RedisURL:    envStr("STEMDECK_REDIS_URL", ""),
		CacheTTL:    envDuration("STEMDECK_CACHE_TTL", 30*time.Second),

		SampleRate:     envInt("STEMDECK_SAMPLE_RATE", 48000),
		DriftTolerance: envFloat("STEMDECK_DRIFT_TOLERANCE", 0.030),
		DriftInterval:  envFloat("STEMDECK_DRIFT_INTERVAL", 0.25),
		NoAudible:      envStr("STEMDECK_NO_AUDIBLE", "error"),

		LogLevel: envStr("STEMDECK_LOG_LEVEL", "info"),
		MIDIIn:   envStr("STEMDECK_MIDI_IN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDuration accepts Go durations ("250ms") or plain seconds ("2.5").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return fallback
}
