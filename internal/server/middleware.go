package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/desertthunder/cosmic/internal/shared"
)

// statusRecorder captures the status code written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Logging logs one line per request with method, path, status and duration.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration", time.Since(start),
			}
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				kv = append(kv, "request_id", id)
			}

			switch {
			case rec.status >= 500:
				logger.Error("request", kv...)
			case rec.status >= 400:
				logger.Warn("request", kv...)
			default:
				logger.Info("request", kv...)
			}
		})
	}
}

// RequestID tags each request with an id, reusing X-Request-Id when the client sends one.
func RequestID() Middleware { return chimiddleware.RequestID }

// RealIP rewrites the remote address from X-Real-IP or X-Forwarded-For. Only install it behind a
// proxy that sets those headers; otherwise clients pick their own address.
func RealIP() Middleware { return chimiddleware.RealIP }

// Recover turns handler panics into 500 responses.
func Recover() Middleware { return chimiddleware.Recoverer }

// CORS allows the configured origins to call the JSON routes with cookies. With no origins and no
// base URL cross-origin requests get no CORS headers.
func CORS(cfg shared.ServerConfig) Middleware {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 && cfg.BaseURL != "" {
		origins = []string{cfg.BaseURL}
	}
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// DefaultLimiterIdle is how long a client bucket survives without requests.
const DefaultLimiterIdle = 10 * time.Minute

// RateLimiter hands out one token bucket per client address. Buckets idle for longer than the
// idle window are evicted on a later call.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter allows rps requests per second per client with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    DefaultLimiterIdle,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// WithClock replaces the time source and idle window, mainly for tests.
func (l *RateLimiter) WithClock(now func() time.Time, idle time.Duration) *RateLimiter {
	l.now = now
	if idle > 0 {
		l.idle = idle
	}
	return l
}

// Allow reports whether a request from client may proceed now.
func (l *RateLimiter) Allow(client string) bool {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.seen = now
	l.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

// Sweep evicts idle buckets and returns how many were removed.
func (l *RateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweep(l.now())
}

func (l *RateLimiter) sweep(now time.Time) int {
	removed := 0
	for client, b := range l.clients {
		if now.Sub(b.seen) >= l.idle {
			delete(l.clients, client)
			removed++
		}
	}
	l.lastSweep = now
	return removed
}

// Len returns the number of tracked clients.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientAddr(r)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
