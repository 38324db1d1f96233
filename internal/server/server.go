// Package server serves stored zoom-labeled layers and on-demand
// decimation over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoomtier/internal/config"
	"github.com/sells-group/zoomtier/internal/decimate"
	"github.com/sells-group/zoomtier/internal/metrics"
	"github.com/sells-group/zoomtier/internal/store"
)

const requestTimeout = 60 * time.Second

// Server routes layer and decimation requests.
type Server struct {
	cfg    config.ServerConfig
	store  store.Store
	cache  *ResponseCache
	tiers  []decimate.Tier
	opts   []decimate.Option
	router *chi.Mux
}

// New builds a Server over st. tiers and opts are used by the decimate
// endpoint when a request does not carry its own tier list.
func New(cfg config.ServerConfig, st store.Store, tiers []decimate.Tier, opts ...decimate.Option) *Server {
	s := &Server{
		cfg:   cfg,
		store: st,
		cache: NewResponseCache(cfg.CacheSize, cfg.CacheTTL),
		tiers: slices.Clone(tiers),
		opts:  opts,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Cache", "X-Request-Id"},
		MaxAge:         300,
	}))

	router.Get("/health", s.health)
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(newLimiter(s.cfg.RateLimit, s.cfg.RateBurst)))

		r.Route("/layers", func(r chi.Router) {
			r.Get("/", s.listLayers)
			r.Get("/{name}", s.getLayer)
			r.Delete("/{name}", s.deleteLayer)
			r.Get("/{name}/points", s.layerPoints)
		})
		r.Post("/decimate", s.decimatePoints)
	})

	return router
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Cache returns the points response cache.
func (s *Server) Cache() *ResponseCache { return s.cache }

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- eris.Wrap(err, "server: listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return <-errCh
}

// requestLogger logs each request with zap and records route metrics.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDurationSeconds.WithLabelValues(route).Observe(elapsed.Seconds())

		zap.L().Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", elapsed),
		)
	})
}
