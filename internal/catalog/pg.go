package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cbegin/stemdeck-go/internal/song"
)

// DB is the subset of *pgxpool.Pool the catalog uses.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGSource reads songs from the songs and song_tracks tables.
type PGSource struct {
	db DB
}

func NewPGSource(db DB) *PGSource {
	return &PGSource{db: db}
}

// AutoMigrate creates the catalog tables if they do not exist.
func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS songs (
          id             TEXT PRIMARY KEY,
          title          TEXT NOT NULL,
          voicing        TEXT NOT NULL DEFAULT '',
          bpm            INT NOT NULL,
          time_signature INT NOT NULL DEFAULT 4,
          duration       DOUBLE PRECISION NOT NULL DEFAULT 0
      )
    `); err != nil {
		return fmt.Errorf("migrate songs: %w", err)
	}
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS song_tracks (
          song_id   TEXT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
          id        TEXT NOT NULL,
          position  INT NOT NULL,
          name      TEXT NOT NULL DEFAULT '',
          kind      TEXT NOT NULL DEFAULT 'other',
          file_path TEXT NOT NULL,
          volume    DOUBLE PRECISION,
          pan       DOUBLE PRECISION NOT NULL DEFAULT 0,
          is_muted  BOOLEAN NOT NULL DEFAULT FALSE,
          is_solo   BOOLEAN NOT NULL DEFAULT FALSE,
          PRIMARY KEY (song_id, id)
      )
    `); err != nil {
		return fmt.Errorf("migrate song_tracks: %w", err)
	}
	return nil
}

func (p *PGSource) List(ctx context.Context) ([]song.Summary, error) {
	rows, err := p.db.Query(ctx, `
		SELECT s.id, s.title, s.voicing, s.bpm, COUNT(t.id)
		FROM songs s
		LEFT JOIN song_tracks t ON t.song_id = s.id
		GROUP BY s.id, s.title, s.voicing, s.bpm
		ORDER BY s.title
	`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	out := []song.Summary{}
	for rows.Next() {
		var s song.Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.Voicing, &s.Tempo, &s.TrackCount); err != nil {
			return nil, fmt.Errorf("list songs scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list songs rows: %w", err)
	}
	return out, nil
}

func (p *PGSource) Get(ctx context.Context, id string) (song.Song, error) {
	var s song.Song
	err := p.db.QueryRow(ctx, `
		SELECT id, title, voicing, bpm, time_signature, duration
		FROM songs WHERE id = $1
	`, id).Scan(&s.ID, &s.Title, &s.Voicing, &s.Tempo, &s.TimeSignatureBeatsPerBar, &s.DurationSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, fmt.Errorf("%w: %q", ErrSongNotFound, id)
	}
	if err != nil {
		return s, fmt.Errorf("get song %q: %w", id, err)
	}

	rows, err := p.db.Query(ctx, `
		SELECT id, name, kind, file_path, volume IS NOT NULL, COALESCE(volume, 0), pan, is_muted, is_solo
		FROM song_tracks WHERE song_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return s, fmt.Errorf("get song %q tracks: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t         song.Track
			kind      string
			hasVolume bool
			volume    float64
		)
		if err := rows.Scan(&t.ID, &t.Name, &kind, &t.Source, &hasVolume, &volume, &t.Pan, &t.Muted, &t.Solo); err != nil {
			return s, fmt.Errorf("get song %q tracks scan: %w", id, err)
		}
		t.Kind = song.ParseKind(kind)
		if hasVolume {
			t.Volume = &volume
		}
		s.Tracks = append(s.Tracks, t)
	}
	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("get song %q tracks rows: %w", id, err)
	}
	return s, nil
}
