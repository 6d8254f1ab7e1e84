// Package web exposes the control surface over HTTP: profile CRUD,
// session control, a health probe, and a WebSocket event stream. Routes
// bind one-to-one to the manager and profile store operations.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/security"
	"github.com/tunnelward/tunnelward/internal/store"
	"github.com/tunnelward/tunnelward/internal/supervisor"
)

// Server serves the JSON API for one manager and profile store.
type Server struct {
	mgr      *supervisor.Manager
	profiles *store.ProfileStore
	cfg      store.WebConfig
}

// NewServer wires the API against the given manager and store.
func NewServer(mgr *supervisor.Manager, profiles *store.ProfileStore, cfg store.WebConfig) *Server {
	return &Server{mgr: mgr, profiles: profiles, cfg: cfg}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.cfg.CORSEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/profiles", s.handleListProfiles)
		r.Post("/profiles", s.handleCreateProfile)
		r.Get("/profiles/{name}", s.handleGetProfile)
		r.Put("/profiles/{name}", s.handleUpdateProfile)
		r.Delete("/profiles/{name}", s.handleDeleteProfile)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions/start", s.handleStartSession)
		r.Post("/sessions/{id}/stop", s.handleStopSession)
		r.Post("/sessions/stop-all", s.handleStopAll)
		r.Get("/sessions/{id}", s.handleGetSession)
	})

	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("web interface listening")

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	p := model.Profile{AutoReconnect: true}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid profile body: %w", err)))
		return
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.ApplyDefaults()
	if err := s.profiles.Create(&p); err != nil {
		writeError(w, err)
		return
	}
	s.mgr.Events().Publish(model.ProfileEvent(model.EventProfileCreated, p.ID, p.Name))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	updated := model.Profile{AutoReconnect: true}
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid profile body: %w", err)))
		return
	}
	updated.ApplyDefaults()
	if err := s.profiles.Update(name, &updated); err != nil {
		writeError(w, err)
		return
	}
	s.mgr.Events().Publish(model.ProfileEvent(model.EventProfileUpdated, updated.ID, updated.Name))
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := s.profiles.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.profiles.Delete(name); err != nil {
		writeError(w, err)
		return
	}
	s.mgr.Events().Publish(model.ProfileEvent(model.EventProfileDeleted, p.ID, p.Name))
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.mgr.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

type startRequest struct {
	Profile  string `json:"profile"`
	Password string `json:"password,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid start body: %w", err)))
		return
	}
	p, err := s.profiles.Get(req.Profile)
	if err != nil {
		writeError(w, err)
		return
	}
	sid, err := s.mgr.Start(&p, supervisor.StartOptions{Password: req.Password})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sid.String()})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	sid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid session id")))
		return
	}
	if err := s.mgr.Stop(sid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stopped": sid.String()})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.StopAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stopped": "all"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid session id")))
		return
	}
	sess, err := s.mgr.StatusOf(sid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": security.RedactMessage(err.Error())}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		profNotFound *security.ProfileNotFoundError
		sessNotFound *security.SessionNotFoundError
		exists       *security.ProfileExistsError
		running      *security.AlreadyRunningError
	)
	switch {
	case errors.As(err, &profNotFound), errors.As(err, &sessNotFound):
		status = http.StatusNotFound
	case errors.As(err, &exists), errors.As(err, &running):
		status = http.StatusConflict
	case errors.Is(err, security.ErrManagerClosed):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorBody(err))
}
