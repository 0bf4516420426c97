package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cosmic/internal/rooms"
	"github.com/desertthunder/cosmic/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own
// several routes (login, callback, group operations).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Deps are the collaborators of the serve command's route table. A nil Auth, Catalogs or
// Sessions leaves the login and top artists routes out; a nil Rooms leaves out the group routes.
type Deps struct {
	Config   *shared.Config
	Auth     Authorizer
	Catalogs CatalogFactory
	Rooms    *rooms.Service
	Sessions *SessionManager
	Logger   *log.Logger
}

// NewApp builds the router of the serve command.
func NewApp(d Deps) *MuxRouter {
	cfg := d.Config
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}
	logger := orDiscard(d.Logger)

	r := NewMuxRouter()
	r.Use(RequestID())
	if cfg.Server.TrustProxy {
		r.Use(RealIP())
	}
	r.Use(Logging(logger.WithPrefix("http")), Recover(), CORS(cfg.Server))
	if cfg.Server.RateLimit > 0 {
		r.Use(NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).Middleware())
	}

	r.Handle(http.MethodGet, "/healthz", HealthHandler())

	if d.Rooms != nil {
		r.Handler(NewGroupHandler(d.Rooms, logger))
		r.Handler(NewSnapshotHandler(d.Rooms, cfg.Galaxy, logger))
	}

	if d.Sessions != nil {
		if d.Auth != nil {
			r.Handler(NewAuthHandler(d.Auth, d.Sessions, cfg.Server.BaseURL, logger))
		}
		if d.Catalogs != nil {
			r.Handler(NewTopHandler(d.Catalogs, d.Sessions, cfg.Group.TopLimit, logger))
		}
		r.Handle(http.MethodGet, "/", IndexHandler(d.Sessions, r.Routes))
	}

	return r
}

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// Server runs an [http.Server] until its context ends, then shuts it down gracefully.
type Server struct {
	srv             *http.Server
	logger          *log.Logger
	shutdownTimeout time.Duration
}

// NewServer creates a server for handler on addr.
func NewServer(addr string, handler http.Handler, logger *log.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:          orDiscard(logger).WithPrefix("server"),
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or the server fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err, ok := <-errs:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
