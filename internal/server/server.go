package server

import (
	"log/slog"
	"net/http"

	"github.com/MaciejGL/shaper/internal/session"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store  session.Remote
	whois  WhoIser
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured. An empty apiKey
// leaves the API open; tsnet then handles access.
func New(store session.Remote, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:  store,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale enables per-request identity lookup through the tailnet.
func (s *Server) SetTailscale(whois WhoIser) {
	s.whois = whois
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(APIKeyAuth(s.apiKey))
		}
		r.Use(s.identity)

		r.Get("/me", s.handleMe)

		r.Get("/plans/{id}", s.handleGetPlan)
		r.Get("/plans/{id}/selection", s.handleSelection)
		r.Get("/plans/{id}/previous-logs", s.handlePreviousLogs)

		r.Post("/sets/{id}/complete", s.handleCompleteSet)
		r.Put("/sets/{id}/log", s.handleUpdateSetLog)
		r.Delete("/sets/{id}", s.handleRemoveSet)

		r.Post("/exercises/{id}/complete", s.handleCompleteExercise)
		r.Post("/exercises/{id}/sets", s.handleAddSet)
	})
}

// identity picks the tailnet identity when tsnet is active, otherwise the
// local dev identity.
func (s *Server) identity(next http.Handler) http.Handler {
	if s.whois != nil {
		return TailscaleIdentity(s.whois, s.log)(next)
	}
	return DevIdentity(next)
}
