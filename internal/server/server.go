package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/stridecoach/setback/internal/engine"
	"github.com/stridecoach/setback/internal/store"
)

// Server is the setback HTTP API server.
type Server struct {
	db      *store.DB
	eng     *engine.Engine
	log     *zap.SugaredLogger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server.
func New(db *store.DB, eng *engine.Engine, log *zap.SugaredLogger, version string) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		db:      db,
		eng:     eng,
		log:     log,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Mutation surface (conversational agent boundary)
		r.Post("/subjects/{subjectID}/events", s.handleCreateEvent)
		r.Post("/subjects/{subjectID}/events/amend", s.handleAmendByTitle)
		r.Post("/events/{eventID}/updates", s.handleAmendEvent)
		r.Post("/events/{eventID}/resolve", s.handleResolveEvent)

		// Query surface (agent context + read-only reporting)
		r.Get("/events/{eventID}", s.handleGetEvent)
		r.Get("/subjects/{subjectID}/context", s.handleGetContext)
		r.Get("/subjects/{subjectID}/history", s.handleHistory)
		r.Get("/habits/{habitID}/events", s.handleEventsByHabit)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the store error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": ve.Error(),
			"field": ve.Field,
		})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Errorw("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
