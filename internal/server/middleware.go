package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/vmunix/scrapearr/pkg/torznab"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(wrapped, r)
		status := wrapped.status
		if status == 0 {
			status = http.StatusOK
		}
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"t", r.URL.Query().Get("t"),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// requireAPIKey checks the apikey parameter or X-Api-Key header when a key
// is configured.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next(w, r)
			return
		}
		key := r.Header.Get("X-Api-Key")
		if key == "" {
			key = r.URL.Query().Get("apikey")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) != 1 {
			writeTorznabError(w, http.StatusUnauthorized, torznab.CodeBadCredentials, "invalid api key")
			return
		}
		next(w, r)
	}
}
