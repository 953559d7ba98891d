// Package server exposes songs and playback sessions over HTTP and pushes
// session status to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/cbegin/stemdeck-go"
	"github.com/cbegin/stemdeck-go/internal/catalog"
	"github.com/cbegin/stemdeck-go/internal/logger"
)

// EventsChannel is the Redis channel session events are published on.
const EventsChannel = "broadcast"

type Options struct {
	// TickInterval drives every session clock and the status broadcast.
	TickInterval time.Duration
	// AllowOrigin is an extra websocket Origin to accept; "*" accepts any.
	AllowOrigin    string
	SessionOptions []stemdeck.SessionOption
}

type entry struct {
	id     string
	sess   *stemdeck.Session
	cancel context.CancelFunc
}

type Server struct {
	ctx      context.Context
	songs    catalog.Source
	hub      *Hub
	rdb      *redis.Client
	opts     Options
	upgrader websocket.Upgrader
	outbox   chan []byte

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewServer wires a server. hub and rdb may be nil: without a hub nothing is
// pushed to websockets, without rdb no events reach Redis.
func NewServer(ctx context.Context, songs catalog.Source, hub *Hub, rdb *redis.Client, opts Options) *Server {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 20 * time.Millisecond
	}
	s := &Server{
		ctx:      ctx,
		songs:    songs,
		hub:      hub,
		rdb:      rdb,
		opts:     opts,
		outbox:   make(chan []byte, 256),
		sessions: make(map[string]*entry),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/songs", s.handleListSongs)
		r.Get("/songs/{id}", s.handleGetSong)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/sessions/{id}/play", s.handleTransport(func(x *stemdeck.Session) error { return x.Play() }))
		r.Post("/sessions/{id}/pause", s.handleTransport(func(x *stemdeck.Session) error { return x.Pause() }))
		r.Post("/sessions/{id}/stop", s.handleTransport(func(x *stemdeck.Session) error { return x.Stop() }))
		r.Post("/sessions/{id}/seek", s.handleSeek)
		r.Patch("/sessions/{id}/tracks/{trackId}", s.handlePatchTrack)
	})

	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.opts.AllowOrigin == "*" || origin == s.opts.AllowOrigin {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.sessions)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"service":  "stemdeck",
		"sessions": n,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "websocket hub not running")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("server: ws upgrade: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	// queued while the client is still private; once registered the hub
	// may close send at any moment
	welcome := map[string]any{
		"type": "welcome",
		"now":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (s *Server) lookup(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	return e, ok
}

func (s *Server) snapshot() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// OpenSession creates a session for a catalog song, starts loading its tracks
// and starts its clock.
func (s *Server) OpenSession(ctx context.Context, songID string) (string, *stemdeck.Session, error) {
	sg, err := s.songs.Get(ctx, songID)
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	opts := append([]stemdeck.SessionOption{}, s.opts.SessionOptions...)
	opts = append(opts, stemdeck.WithEventHook(func(ev stemdeck.SessionEvent) {
		s.publishEvent(id, ev)
	}))
	sess, err := stemdeck.NewSession(sg, opts...)
	if err != nil {
		return "", nil, err
	}
	if err := sess.Load(s.ctx); err != nil {
		_ = sess.Close()
		return "", nil, err
	}
	runCtx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.sessions[id] = &entry{id: id, sess: sess, cancel: cancel}
	s.mu.Unlock()
	go func() {
		if err := sess.Run(runCtx, s.opts.TickInterval); err != nil && runCtx.Err() == nil {
			logger.Errorf("server: session %s clock: %v", id, err)
		}
	}()
	logger.Infof("server: opened session %s for song %s", id, songID)
	return id, sess, nil
}

// CloseSession stops a session's clock and releases its handles.
func (s *Server) CloseSession(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return errSessionNotFound
	}
	e.cancel()
	logger.Infof("server: closed session %s", id)
	return e.sess.Close()
}

// Close closes every session.
func (s *Server) Close() error {
	var first error
	for _, e := range s.snapshot() {
		if err := s.CloseSession(e.id); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type statusMessage struct {
	Type    string          `json:"type"`
	Session string          `json:"session"`
	Status  stemdeck.Status `json:"status"`
}

type eventMessage struct {
	Type     string  `json:"type"`
	Session  string  `json:"session"`
	Seq      uint64  `json:"seq"`
	Kind     string  `json:"kind"`
	State    string  `json:"state"`
	Position float64 `json:"position"`
	Musical  string  `json:"musical"`
	TrackID  string  `json:"trackId,omitempty"`
	Drift    float64 `json:"drift,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (s *Server) publishEvent(id string, ev stemdeck.SessionEvent) {
	msg := eventMessage{
		Type:     "event",
		Session:  id,
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		State:    ev.State.String(),
		Position: ev.Position,
		Musical:  ev.Musical.String(),
		TrackID:  ev.TrackID,
		Drift:    ev.Drift,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("server: marshal event: %v", err)
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(data)
	}
	if s.rdb != nil {
		select {
		case s.outbox <- data:
		default:
			logger.Warnf("server: event outbox full, dropping %s", msg.Kind)
		}
	}
}

// RunPublisher forwards session events to Redis until ctx is done.
func (s *Server) RunPublisher(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.outbox:
			if err := s.rdb.Publish(ctx, EventsChannel, string(data)).Err(); err != nil {
				logger.Warnf("server: publish event: %v", err)
			}
		}
	}
}

// RunBroadcaster pushes every session's status to the hub each tick until ctx
// is done.
func (s *Server) RunBroadcaster(ctx context.Context) {
	if s.hub == nil {
		return
	}
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcastStatus()
		}
	}
}

func (s *Server) broadcastStatus() {
	for _, e := range s.snapshot() {
		data, err := json.Marshal(statusMessage{Type: "status", Session: e.id, Status: e.sess.Status()})
		if err != nil {
			logger.Errorf("server: marshal status: %v", err)
			continue
		}
		s.hub.Broadcast(data)
	}
}
