// Package statusapi exposes a small read-only HTTP surface over the
// supervisor, event bus and component loader: a status endpoint for
// monitoring tools, a components listing, and a WebSocket upgrade route
// handed off to internal/webnotify for live event pushes.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/aetherius-core/aetherius/internal/arch"
	"github.com/aetherius-core/aetherius/internal/webnotify"
	"github.com/aetherius-core/aetherius/pkg/logger"
)

// Server wires the HTTP routes. It depends only on the narrow arch
// interfaces, not the concrete supervisor/events/components packages.
type Server struct {
	sup        arch.ProcessSupervisor
	components arch.ComponentRegistry
	hub        *webnotify.Hub
	log        logger.Logger
	startedAt  time.Time
	router     *mux.Router
}

// New builds a Server and registers its routes.
func New(sup arch.ProcessSupervisor, components arch.ComponentRegistry, hub *webnotify.Hub, log logger.Logger) *Server {
	s := &Server{sup: sup, components: components, hub: hub, log: log, startedAt: time.Now(), router: mux.NewRouter()}
	s.routes()
	return s
}

// Handler returns the http.Handler to mount on a listener.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/components", s.handleComponents).Methods(http.MethodGet)
	s.router.HandleFunc("/components/{name}", s.handleComponent).Methods(http.MethodGet)
	s.router.HandleFunc("/events/ws", s.handleEventsWS).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusResponse struct {
	ServerState    string   `json:"server_state"`
	UptimeSeconds  float64  `json:"uptime_seconds"`
	ConnectedWeb   []string `json:"connected_web_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		ServerState:   s.sup.State(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		ConnectedWeb:  s.hub.ConnectedClients(),
	})
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.components.List())
}

func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	info, ok := s.components.Info(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "component not found"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	if err := s.hub.Upgrade(w, r, clientID); err != nil {
		s.log.Warn("statusapi: websocket upgrade failed", "error", err.Error())
	}
}
