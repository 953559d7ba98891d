// Package catalog finds songs: from a directory of song files, from Postgres,
// or either one behind a Redis cache.
package catalog

import (
	"context"
	"errors"

	"github.com/cbegin/stemdeck-go/internal/song"
)

var ErrSongNotFound = errors.New("song not found")

// Source lists and loads songs.
type Source interface {
	List(ctx context.Context) ([]song.Summary, error)
	Get(ctx context.Context, id string) (song.Song, error)
}
