package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/opencode-ai/acpthread/internal/engine"
	"github.com/opencode-ai/acpthread/internal/logging"
	"github.com/opencode-ai/acpthread/internal/track"
)

// Config holds server configuration.
type Config struct {
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:7433",
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout, SSE connections are long-lived
	}
}

// Server is the HTTP inspection server for one engine.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	thread  *engine.Engine
	changes *track.ChangeTracker
}

// New creates a new Server instance around a thread engine. changes may
// be nil when file-change tracking is disabled.
func New(cfg *Config, thread *engine.Engine, changes *track.ChangeTracker) *Server {
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		thread:  thread,
		changes: changes,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	log := logging.Component("server")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", s.config.Addr).Msg("inspection server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Router returns the chi router, used by tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
