// Package admin serves the cache performance endpoints used by operators: local
// cache statistics, redis status, cache clearing and warmup, and process metrics.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/cache"
	"github.com/decorstore/cachekit/logger"
	"github.com/decorstore/cachekit/metrics"
	"github.com/decorstore/cachekit/sys"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BasePath is where the performance routes are mounted.
const BasePath = "/api/performance"

// sampleKeys is how many redis keys the redis endpoint lists.
const sampleKeys = 10

type Server struct {
	dist    *cache.Distributed
	local   *cache.Local
	warmer  *cache.Warmer
	metrics *metrics.Collector
	sampler SystemSampler
	auth    Authorizer
	version string
	origins []string
	started time.Time
	logger  logger.Logger
	router  chi.Router
}

type Option func(*Server)

// WithAuthorizer guards every route except /health and /metrics. The default is
// AllowAll.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Server) { s.auth = a }
}

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithSampler replaces the gopsutil process sampler.
func WithSampler(sampler SystemSampler) Option {
	return func(s *Server) { s.sampler = sampler }
}

// WithWarmer makes the warmup endpoint also refresh the distributed cache.
func WithWarmer(w *cache.Warmer) Option {
	return func(s *Server) { s.warmer = w }
}

// WithAllowedOrigins enables CORS for the admin dashboard served from origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New builds the admin router.
func New(dist *cache.Distributed, local *cache.Local, log logger.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		dist:    dist,
		local:   local,
		auth:    AllowAll,
		version: "dev",
		started: time.Now(),
		logger:  log.WithPrefix("[admin]"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sampler == nil {
		sampler, err := NewProcessSampler()
		if err != nil {
			return nil, err
		}
		s.sampler = sampler
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverer)
	r.Use(requestLogger(logger.ToZap(s.logger)))
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Get("/health", s.health)
	r.Route(BasePath, func(r chi.Router) {
		r.Get("/health", s.health)
		r.Group(func(r chi.Router) {
			r.Use(s.authorize)
			r.Get("/cache", s.cacheStatistics)
			r.Get("/cache/statistics", s.cacheStatistics)
			r.Get("/cache/keys", s.cacheKeys)
			r.Post("/cache/clear", s.clearCache)
			r.Post("/cache/clear/{prefix}", s.clearCacheByPrefix)
			r.Post("/cache/warmup", s.warmUp)
			r.Get("/redis", s.redis)
			r.Get("/system", s.system)
			r.Post("/system/gc", s.gc)
			r.Get("/memory", s.memory)
			r.Get("/gc", s.gcInfo)
			r.Get("/threads", s.threads)
			r.Get("/dashboard", s.dashboard)
		})
	})
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errs := make(chan error, 1)
	sys.Go(s.logger, func() {
		s.logger.Info("admin server listening on %s", addr)
		errs <- srv.ListenAndServe()
	})
	select {
	case err := <-errs:
		return errors.Wrap(err, "admin server")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down admin server")
	}
	s.logger.Info("admin server stopped")
	return nil
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("error writing %T response: %s", v, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, what string, err error) {
	logger.WithKV(s.logger, "request_id", middleware.GetReqID(r.Context())).Error("error %s: %s", what, err)
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic serving %s %s: %s\n%s", r.Method, r.URL.Path, sys.PanicError(rec), debug.Stack())
				s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestLogger(z *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			z.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(started)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
