package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/playstats/pkg/metrics"
)

// MetricsMiddleware records request count and latency per named route.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		endpoint := "unknown"
		if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
			endpoint = route.GetName()
		}
		code := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, float64(time.Since(start).Milliseconds()))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Authorizer decides whether r may use administrative routes.
type Authorizer func(r *http.Request) bool

// DenyAll rejects every request.
func DenyAll(*http.Request) bool { return false }

// BearerToken accepts requests carrying "Authorization: Bearer <token>".
// An empty token denies everyone.
func BearerToken(token string) Authorizer {
	if token == "" {
		return DenyAll
	}
	want := []byte(token)
	return func(r *http.Request) bool {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		return ok && subtle.ConstantTimeCompare([]byte(got), want) == 1
	}
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			writeFailure(w, NewKind("api.admin", ErrForbidden))
			return
		}
		next(w, r)
	}
}
