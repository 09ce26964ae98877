package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"clantracker/internal/storage"
)

// Options hold server wiring.
type Options struct {
	Port int
	// ClanTag is the default tag for clan endpoints when the query string
	// does not name one.
	ClanTag string
	// HistoryCap bounds the history endpoint (10080 rows = 7 days at 1/min).
	HistoryCap int
	// TrendWindow is the moving-average window for the activity endpoint.
	TrendWindow int
	// StaticDir, when it exists, is served at the root for the dashboard.
	StaticDir string
}

// Server is the read-only dashboard API.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	hub       *Hub
	snapshots storage.SnapshotStore
	players   storage.PlayerStore
	opts      Options
	log       zerolog.Logger
}

// New creates the HTTP server. Mutation happens only through the poller;
// every route here reads.
func New(snapshots storage.SnapshotStore, players storage.PlayerStore, opts Options, log zerolog.Logger) *Server {
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = 10080
	}

	s := &Server{
		router:    chi.NewRouter(),
		hub:       NewHub(log),
		snapshots: snapshots,
		players:   players,
		opts:      opts,
		log:       log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Hub exposes the live feed so the poller can broadcast new snapshots.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/clan", func(r chi.Router) {
			r.Get("/latest", s.handleClanLatest)
			r.Get("/history", s.handleClanHistory)
		})
		r.Route("/players", func(r chi.Router) {
			r.Get("/", s.handlePlayers)
			r.Get("/{tag}/stats", s.handlePlayerStats)
			r.Get("/{tag}/activity", s.handlePlayerActivity)
		})
		r.Get("/live", s.handleLive)
	})

	if s.opts.StaticDir != "" {
		if _, err := os.Stat(s.opts.StaticDir); err == nil {
			s.router.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
		}
	}
}

// Start runs the listener and the websocket hub until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.log.Info().Int("port", s.opts.Port).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
