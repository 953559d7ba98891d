package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cbegin/stemdeck-go"
	"github.com/cbegin/stemdeck-go/internal/mix"
	"github.com/cbegin/stemdeck-go/internal/musicclock"
)

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	list, err := s.songs.List(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	sg, err := s.songs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

type sessionResponse struct {
	ID     string          `json:"id"`
	Status stemdeck.Status `json:"status"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	out := []sessionResponse{}
	for _, e := range s.snapshot() {
		out = append(out, sessionResponse{ID: e.id, Status: e.sess.Status()})
	}
	writeJSON(w, http.StatusOK, out)
}

type createSessionRequest struct {
	SongID string `json:"songId"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SongID == "" {
		writeError(w, http.StatusBadRequest, "songId is required")
		return
	}
	id, sess, err := s.OpenSession(r.Context(), req.SongID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, Status: sess.Status()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *stemdeck.Session, bool) {
	id := chi.URLParam(r, "id")
	e, ok := s.lookup(id)
	if !ok {
		writeEngineError(w, errSessionNotFound)
		return id, nil, false
	}
	return id, e.sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, Status: sess.Status()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.CloseSession(chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransport(op func(*stemdeck.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, sess, ok := s.session(w, r)
		if !ok {
			return
		}
		if err := op(sess); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{ID: id, Status: sess.Status()})
	}
}

// seekRequest holds exactly one target: seconds, a bar:beat:sixteenth
// position, or a pointer x on a timeline of the given width.
type seekRequest struct {
	Seconds  *float64 `json:"seconds"`
	Position *string  `json:"position"`
	X        *float64 `json:"x"`
	Width    *float64 `json:"width"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var err error
	switch {
	case req.Seconds != nil:
		err = sess.Seek(*req.Seconds)
	case req.Position != nil:
		var pos musicclock.Position
		if pos, err = musicclock.ParsePosition(*req.Position); err == nil {
			err = sess.SeekMusical(pos)
		}
	case req.X != nil && req.Width != nil:
		err = sess.SeekPixel(*req.X, *req.Width)
	default:
		writeError(w, http.StatusBadRequest, "one of seconds, position or x+width is required")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, Status: sess.Status()})
}

type patchTrackRequest struct {
	Volume *float64 `json:"volume"`
	Pan    *float64 `json:"pan"`
	Muted  *bool    `json:"muted"`
	Solo   *bool    `json:"solo"`
}

func (s *Server) handlePatchTrack(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	trackID := chi.URLParam(r, "trackId")
	defer r.Body.Close()
	var req patchTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validatePatch(req); err != nil {
		writeEngineError(w, err)
		return
	}
	steps := []func() error{}
	if req.Volume != nil {
		steps = append(steps, func() error { return sess.SetVolume(trackID, *req.Volume) })
	}
	if req.Pan != nil {
		steps = append(steps, func() error { return sess.SetPan(trackID, *req.Pan) })
	}
	if req.Muted != nil {
		steps = append(steps, func() error { return sess.SetMute(trackID, *req.Muted) })
	}
	if req.Solo != nil {
		steps = append(steps, func() error { return sess.SetSolo(trackID, *req.Solo) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			writeEngineError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, Status: sess.Status()})
}

// validatePatch rejects the whole patch before any field is applied.
func validatePatch(req patchTrackRequest) error {
	if req.Volume != nil {
		if err := mix.ValidateVolume(*req.Volume); err != nil {
			return err
		}
	}
	if req.Pan != nil {
		return mix.ValidatePan(*req.Pan)
	}
	return nil
}
