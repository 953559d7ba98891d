package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"github.com/cbegin/stemdeck-go/internal/errs"
)

// maxSourceBytes caps a single track fetch.
const maxSourceBytes = 512 << 20

// Fetch reads the raw bytes of a track source. Sources are local paths,
// file:// URLs or http(s) URLs. Failures wrap errs.ErrUnreachableSource.
func Fetch(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty source", errs.ErrUnreachableSource)
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetchHTTP(ctx, client, source)
	}
	path := strings.TrimPrefix(source, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnreachableSource, err)
	}
	return data, nil
}

func fetchHTTP(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnreachableSource, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnreachableSource, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", errs.ErrUnreachableSource, url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnreachableSource, err)
	}
	return data, nil
}

type format int

const (
	formatUnknown format = iota
	formatWAV
	formatMP3
	formatVorbis
)

func sniff(data []byte, source string) format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return formatWAV
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return formatVorbis
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return formatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return formatMP3
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".wav", ".wave":
		return formatWAV
	case ".mp3":
		return formatMP3
	case ".ogg", ".oga":
		return formatVorbis
	}
	return formatUnknown
}

// Decode turns encoded track bytes into a 16-bit stereo stream at sampleRate.
// Failures wrap errs.ErrDecode.
func Decode(data []byte, source string, sampleRate int) (Decoded, error) {
	r := bytes.NewReader(data)
	var (
		s   Decoded
		err error
	)
	switch sniff(data, source) {
	case formatWAV:
		s, err = wav.DecodeWithSampleRate(sampleRate, r)
	case formatMP3:
		s, err = mp3.DecodeWithSampleRate(sampleRate, r)
	case formatVorbis:
		s, err = vorbis.DecodeWithSampleRate(sampleRate, r)
	default:
		return nil, fmt.Errorf("%w: %s: unrecognized audio format", errs.ErrDecode, source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrDecode, source, err)
	}
	return s, nil
}

// Frames reports the number of stereo frames in a decoded stream.
func Frames(s Decoded) int {
	return int(s.Length() / bytesPerInFrame)
}

// Seconds reports the playing time of a decoded stream.
func Seconds(s Decoded, sampleRate int) float64 {
	return float64(s.Length()/bytesPerInFrame) / float64(sampleRate)
}

// Open fetches and decodes a source in one step.
func Open(ctx context.Context, client *http.Client, source string, sampleRate int) (Decoded, error) {
	data, err := Fetch(ctx, client, source)
	if err != nil {
		return nil, err
	}
	return Decode(data, source, sampleRate)
}
