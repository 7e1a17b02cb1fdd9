package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apperrors "github.com/solvedrelay/solvedrelay/internal/errors"
	"github.com/solvedrelay/solvedrelay/internal/observability"
	"github.com/solvedrelay/solvedrelay/internal/ratelimit"
	"github.com/solvedrelay/solvedrelay/internal/server/handlers"
	servermw "github.com/solvedrelay/solvedrelay/internal/server/middleware"
)

// Options wires the server's collaborators. Limiter and Fetcher are required
// for the solved route to be mounted.
type Options struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// TrustProxy enables chi's RealIP so X-Forwarded-For / X-Real-IP become
	// the caller identity.
	TrustProxy bool

	// CORSAllowedOrigins defaults to "*".
	CORSAllowedOrigins []string

	Limiter       *ratelimit.Limiter
	WindowMinutes int
	Stats         ratelimit.StatsRecorder
	Fetcher       handlers.SolvedFetcher

	Health *handlers.HealthManager

	// AdminToken enables POST /admin/signal when non-empty.
	AdminToken string
}

// Server is the relay's HTTP server.
type Server struct {
	router *chi.Mux
	opts   Options

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New builds the router for opts.
func New(opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 120 * time.Second
	}
	if len(opts.CORSAllowedOrigins) == 0 {
		opts.CORSAllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Order: CORS, RealIP (opt-in), RequestID, Metrics, Recovery.
	r.Use(cors.Handler(corsOptions(opts.CORSAllowedOrigins)))
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		opts:   opts,
	}

	handlers.SetHTTPErrorResponder(HandleError)
	s.registerRoutes()

	return s
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		// Reflect whatever headers the browser asks for.
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			ratelimit.HeaderLimit,
			ratelimit.HeaderRemaining,
			ratelimit.HeaderReset,
			ratelimit.HeaderRetryAfter,
			servermw.RequestIDHeader,
		},
		MaxAge: 300,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, fmt.Sprintf("%d", s.opts.Port))
}

// Start listens on the configured address and serves until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}
	srv := s.server
	s.mu.Unlock()

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("addr", ln.Addr().String()),
			zap.Bool("trust_proxy", s.opts.TrustProxy))
	}

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return srv.Shutdown(ctx)
}

// ListenAddr returns the bound address once serving, or "".
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
