package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/stemdeck-go/internal/logger"
	"github.com/cbegin/stemdeck-go/internal/song"
)

// FileSource reads one song per .yaml, .yml or .json file in a directory.
// A song without an id takes its file name. Relative track paths resolve
// against the song file's directory.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func isSongFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// ReadSongFile parses a single song file.
func ReadSongFile(path string) (song.Song, error) {
	var s song.Song
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &s)
	} else {
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	if s.ID == "" {
		base := filepath.Base(path)
		s.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	dir := filepath.Dir(path)
	for i := range s.Tracks {
		s.Tracks[i].Source = resolveSource(dir, s.Tracks[i].Source)
	}
	return s, nil
}

func resolveSource(dir, src string) string {
	if src == "" || strings.Contains(src, "://") || filepath.IsAbs(src) {
		return src
	}
	return filepath.Join(dir, src)
}

func (f *FileSource) songs() ([]song.Song, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []song.Song
	for _, e := range entries {
		if e.IsDir() || !isSongFile(e.Name()) {
			continue
		}
		s, err := ReadSongFile(filepath.Join(f.dir, e.Name()))
		if err != nil {
			logger.Warnf("catalog: skipping %s: %v", e.Name(), err)
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *FileSource) List(ctx context.Context) ([]song.Summary, error) {
	songs, err := f.songs()
	if err != nil {
		return nil, err
	}
	out := make([]song.Summary, 0, len(songs))
	for _, s := range songs {
		out = append(out, s.Summary())
	}
	return out, nil
}

func (f *FileSource) Get(ctx context.Context, id string) (song.Song, error) {
	songs, err := f.songs()
	if err != nil {
		return song.Song{}, err
	}
	for _, s := range songs {
		if s.ID == id {
			return s, nil
		}
	}
	return song.Song{}, fmt.Errorf("%w: %q", ErrSongNotFound, id)
}
