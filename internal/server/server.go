// Package server exposes the room transport and the administrative HTTP
// surface. It implements the room capability the engine renders into; the
// engine itself never opens connections.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gamehost/internal/engine"
)

// Server routes HTTP and websocket traffic to the session registry.
type Server struct {
	router   chi.Router
	registry *engine.Registry
	sessions *engine.SessionRegistry
	hub      *Hub
	logger   *zap.Logger
	kill     func() // requests process shutdown after the manifest is written
}

// New wires the routes. kill is invoked by the administrative kill endpoint
// once the open-games manifest has been persisted.
func New(registry *engine.Registry, sessions *engine.SessionRegistry, hub *Hub, logger *zap.Logger, kill func()) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		registry: registry,
		sessions: sessions,
		hub:      hub,
		logger:   logger,
		kill:     kill,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/games", s.handleListGames)
	s.router.Get("/api/sessions", s.handleListSessions)
	s.router.Get("/rooms/{room}/ws", s.handleWebSocket)
	s.router.Post("/api/admin/kill", s.handleKill)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

type sessionInfo struct {
	ID      string       `json:"id"`
	Room    string       `json:"room"`
	Game    string       `json:"game"`
	Phase   engine.Phase `json:"phase"`
	Players []string     `json:"players"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	all := s.sessions.All()
	infos := make([]sessionInfo, 0, len(all))
	for _, sess := range all {
		info := sessionInfo{
			ID:    sess.ID(),
			Room:  sess.Room(),
			Game:  sess.GameType(),
			Phase: sess.Phase(),
		}
		for _, p := range sess.Players() {
			info.Players = append(info.Players, p.Name)
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleKill writes the open-games manifest and then asks the process to
// exit. The manifest write happens before shutdown is requested so the next
// startup can restore every open game.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Shutdown(); err != nil {
		s.logger.Error("write shutdown manifest", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "manifest write failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go s.kill()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
