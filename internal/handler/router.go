package handler

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angeloszaimis/eventguard/pkg/logger"
)

// NewRouter mounts every introspection endpoint.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/healthz", h.Healthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/events", func(r chi.Router) {
		r.Get("/metrics", h.EventMetrics)
		r.Get("/history", h.EventHistory)
		r.Post("/{type}", h.PublishEvent)
	})

	r.Route("/breakers", func(r chi.Router) {
		r.Get("/", h.Breakers)
		r.Post("/reset", h.ResetBreakers)
		if h.collector != nil {
			r.Get("/collected", h.collector.Handler())
		}
		r.Get("/{name}", h.Breaker)
	})

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Debug("Handled request",
				"from", extractClientIP(r),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
