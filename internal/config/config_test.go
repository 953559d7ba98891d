package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"STEMDECK_PORT", "STEMDECK_ALLOW_ORIGIN", "STEMDECK_TICK_INTERVAL",
		"STEMDECK_SONGS_DIR", "STEMDECK_DATABASE_URL", "STEMDECK_REDIS_URL",
		"STEMDECK_CACHE_TTL", "STEMDECK_SAMPLE_RATE", "STEMDECK_DRIFT_TOLERANCE",
		"STEMDECK_DRIFT_INTERVAL", "STEMDECK_NO_AUDIBLE", "STEMDECK_LOG_LEVEL",
		"STEMDECK_MIDI_IN",
	} {
		os.Unsetenv(k)
	}

	cfg := Load()
	assert.Equal(t, Config{
		Port:           8080,
		TickInterval:   20 * time.Millisecond,
		SongsDir:       "songs",
		CacheTTL:       30 * time.Second,
		SampleRate:     48000,
		DriftTolerance: 0.030,
		DriftInterval:  0.25,
		NoAudible:      "error",
		LogLevel:       "info",
	}, cfg)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STEMDECK_PORT", "9090")
	t.Setenv("STEMDECK_ALLOW_ORIGIN", "http://localhost:3000")
	t.Setenv("STEMDECK_TICK_INTERVAL", "10ms")
	t.Setenv("STEMDECK_SONGS_DIR", "/srv/songs")
	t.Setenv("STEMDECK_DATABASE_URL", "postgres://u:p@db/stemdeck")
	t.Setenv("STEMDECK_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("STEMDECK_CACHE_TTL", "90")
	t.Setenv("STEMDECK_SAMPLE_RATE", "44100")
	t.Setenv("STEMDECK_DRIFT_TOLERANCE", "0.05")
	t.Setenv("STEMDECK_DRIFT_INTERVAL", "1")
	t.Setenv("STEMDECK_NO_AUDIBLE", "ignore")
	t.Setenv("STEMDECK_LOG_LEVEL", "debug")
	t.Setenv("STEMDECK_MIDI_IN", "IAC")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "http://localhost:3000", cfg.AllowOrigin)
	assert.Equal(t, 10*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, "/srv/songs", cfg.SongsDir)
	assert.Equal(t, "postgres://u:p@db/stemdeck", cfg.DatabaseURL)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 0.05, cfg.DriftTolerance)
	assert.Equal(t, 1.0, cfg.DriftInterval)
	assert.Equal(t, "ignore", cfg.NoAudible)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "IAC", cfg.MIDIIn)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("STEMDECK_PORT", "not-a-number")
	t.Setenv("STEMDECK_DRIFT_TOLERANCE", "abc")
	t.Setenv("STEMDECK_CACHE_TTL", "soon")

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 0.030, cfg.DriftTolerance)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
}
