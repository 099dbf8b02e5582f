// Package server exposes search, event and discovery operations over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-events/internal/discovery"
	"github.com/sells-group/nearby-events/internal/events"
	"github.com/sells-group/nearby-events/internal/metrics"
	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/search"
)

// Searcher runs radius searches.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*model.SearchResult, error)
}

// Finder runs AI discovery requests.
type Finder interface {
	Find(ctx context.Context, req discovery.Request) ([]model.Candidate, error)
}

// EventService creates, lists and saves events.
type EventService interface {
	Create(ctx context.Context, in events.CreateInput) (*model.Event, error)
	ListByCreator(ctx context.Context, email string, limit int) ([]model.Event, error)
	SaveAIEvent(ctx context.Context, eventID string, c model.Candidate) (*model.AIEvent, bool, error)
	GetAIEvent(ctx context.Context, eventID string) (*model.AIEvent, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the routes. Without a Finder the AI search
// route answers 503; without a Store /ready skips the ping.
type Deps struct {
	Search  Searcher
	Events  EventService
	Finder  Finder
	Store   Pinger
	Metrics *metrics.Metrics
}

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the router.
func New(deps Deps, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Route("/events", func(r chi.Router) {
			r.Get("/search", s.handleSearch)
			r.Get("/search-ai", s.handleSearchAI)
			r.Get("/by-user", s.handleByUser)
			r.Post("/", s.handleCreate)
		})
		r.Route("/ai-events", func(r chi.Router) {
			r.Post("/", s.handleSaveAIEvent)
			r.Get("/{eventId}", s.handleGetAIEvent)
		})
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// observe logs each request and records it under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.deps.Metrics.HTTPRequest(route, status, elapsed)

		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
