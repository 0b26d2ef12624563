package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/repository"
	"heystak-spider/internal/infra/db/postgres"
)

// AdLister is the read side for persisted creatives. Satisfied by the
// Postgres ad repo; narrow so tests can fake it.
type AdLister interface {
	ListAds(ctx context.Context, f postgres.AdFilter) ([]*model.AdItem, error)
}

// Server exposes the job control API and operational endpoints.
type Server struct {
	jobs   repository.JobRepository
	ads    AdLister // nil when the relational store is not configured
	auth   *AuthManager
	apiKey string
	http   *http.Server
	log    *zerolog.Logger
}

func NewServer(jobs repository.JobRepository, ads AdLister, auth *AuthManager, apiKey, addr string, log *zerolog.Logger) *Server {
	s := &Server{
		jobs:   jobs,
		ads:    ads,
		auth:   auth,
		apiKey: apiKey,
		log:    log,
	}
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Router builds the chi route tree. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/login", s.handleLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs/clear", s.handleClearJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Delete("/jobs/{id}", s.handleDeleteJob)
		r.Post("/jobs/{id}/cancel", s.handleCancelJob)
		r.Post("/jobs/{id}/requeue", s.handleRequeueJob)

		r.Get("/stats", s.handleStats)
		r.Get("/ads", s.handleListAds)
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("admin api listening")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// authMiddleware accepts either the static API key or a minted session
// token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("api key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
				http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(tokenParts[1]), []byte(s.apiKey)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}

		// Fall through to session token (header JWT or cookie).
		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
