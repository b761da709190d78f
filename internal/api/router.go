// Package api serves the hub's HTTP interface.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/GauravPawar101/Validate-me/internal/hub"
	"github.com/GauravPawar101/Validate-me/internal/models"
)

const requestTimeout = 30 * time.Second

// Hub is the part of the hub the API drives.
type Hub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	AddTarget(ctx context.Context, accountID, rawURL string) (*models.Target, error)
	RemoveTarget(ctx context.Context, accountID, targetID string) error
	ListTargets(ctx context.Context, accountID string) ([]hub.TargetReport, error)
	TargetStatus(ctx context.Context, accountID, targetID string) (*hub.TargetReport, error)
	CheckNow(ctx context.Context, accountID, targetID, callerAddress string, forwarded bool) (*hub.CheckResult, error)
	Validators(ctx context.Context) ([]hub.ValidatorView, error)
	ConnectedValidators() []string
	InflightTasks() int
}

// Server holds the handlers of the hub API.
type Server struct {
	hub      Hub
	identity IdentityProvider
	metrics  http.Handler
	logger   zerolog.Logger
}

// NewServer creates the API. metrics may be nil to disable /metrics.
func NewServer(h Hub, identity IdentityProvider, metrics http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		hub:      h,
		identity: identity,
		metrics:  metrics,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Account-ID"},
		MaxAge:         300,
	}))

	r.Get("/ws", s.hub.ServeWS)
	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requestLogger)
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/validators", s.listValidators)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/website", s.createWebsite)
			r.Delete("/website/{websiteId}", s.deleteWebsite)
			r.Get("/websites", s.listWebsites)
			r.Get("/website/status", s.websiteStatus)
			r.Post("/validate", s.validate)
		})
	})
	return r
}

type accountKey struct{}

func accountFrom(ctx context.Context) string {
	id, _ := ctx.Value(accountKey{}).(string)
	return id
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.identity.AccountID(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, id)))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Handler panicked")
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request served")
	})
}

// callerAddress returns the first X-Forwarded-For entry when present, else
// the peer host. forwarded reports which one was used.
func callerAddress(r *http.Request) (address string, forwarded bool) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first, true
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, false
	}
	return host, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
