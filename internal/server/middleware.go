package server

import (
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
)

// loggingMiddleware logs one line per request with response metrics.
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics := httpsnoop.CaptureMetrics(next, w, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", metrics.Code,
				"bytes", metrics.Written,
				"duration", metrics.Duration,
			)
		})
	}
}
