package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"sparkleclean/internal/metrics"

	"github.com/google/uuid"
)

const (
	requestIDHeader    = "X-Request-Id"
	sessionTokenHeader = "X-Session-Token"
)

// sessionToken pulls the admin token from the Authorization bearer header or
// the session header.
func sessionToken(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(sessionTokenHeader))
}

// requireAdmin gates a handler behind a valid admin session.
func (s *HTTPServer) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}

		sess, err := s.sessions.GetSession(r.Context(), token)
		if err != nil {
			s.logger.Error().Err(err).Msg("session lookup failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if sess == nil || sess.Expired() {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		next(w, r)
	}
}

// matchPassword compares the submitted password against the stored set in
// constant time per entry.
func matchPassword(passwords []string, candidate string) bool {
	matched := false
	for _, p := range passwords {
		if subtle.ConstantTimeCompare([]byte(p), []byte(candidate)) == 1 {
			matched = true
		}
	}
	return matched
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit.RPS > 0 {
			if !s.limiter.getLimiter(clientKey(r)).Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if token := sessionToken(r); token != "" {
		return token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		endpoint := normalizeEndpoint(r.URL.Path)
		metrics.ObserveHTTP(endpoint, statusClass(recorder.status), dur.Seconds())

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// normalizeEndpoint collapses path parameters so metric labels stay bounded.
func normalizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/bookings/number/"):
		return "/api/v1/bookings/number"
	case strings.HasPrefix(path, "/api/v1/bookings/export"):
		return "/api/v1/bookings/export"
	case strings.HasPrefix(path, "/api/v1/bookings/"):
		return "/api/v1/bookings/{id}"
	case strings.HasPrefix(path, "/api/v1/passwords/"):
		return "/api/v1/passwords/{password}"
	default:
		return path
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
