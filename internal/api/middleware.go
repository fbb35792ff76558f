package api

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/marmos91/filedepot/internal/logger"
	"github.com/marmos91/filedepot/pkg/auth"
)

// ctxKey keeps context values private to this package.
type ctxKey int

const (
	claimsKey ctxKey = iota
	requestIDKey
)

// claimsFrom returns the verified token claims placed on the context by
// requireAuth.
func claimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

// requestIDFrom returns the request id assigned by withRequestLog.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// statusRecorder captures the status code and body size written through
// it. Unwrap keeps http.NewResponseController working on the underlying
// writer so handlers can adjust per-request deadlines.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withRecovery turns handler panics into 500 responses. The stack is
// logged; the client sees only the generic envelope.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error("Panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
			writeJSON(w, http.StatusInternalServerError, envelope{
				Code:    http.StatusInternalServerError,
				Message: "internal server error",
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// withRequestLog assigns each request a UUID, echoes it as X-Request-Id,
// binds a request-scoped logger into the context, and emits one line per
// completed request.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		reqLog := logger.With().Str("request_id", requestID).Logger()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = reqLog.WithContext(ctx)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		defer func() {
			reqLog.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", clientIP(r)).
				Int("status", rec.status).
				Int64("bytes", rec.bytes).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()

		next.ServeHTTP(rec, r)
	})
}

// withMetrics feeds the HTTP metrics: per-route counters, latency, and
// the in-flight gauge. Routes are recorded by template ("/api/files/{id}")
// so cardinality stays bounded.
func (h *handlers) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}

		h.metrics.HTTP.RecordRequestStart(route)
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(rec, r)

		h.metrics.HTTP.RecordRequestEnd(route)
		h.metrics.HTTP.RecordRequest(r.Method, route, rec.status, time.Since(start), rec.bytes)
	})
}

// withRateLimit throttles by client IP. Mounted on the auth and public
// subrouters only; authenticated traffic is not limited.
func (h *handlers) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, envelope{
				Code:    http.StatusTooManyRequests,
				Message: "too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth verifies the bearer token and places its claims on the
// request context.
func (h *handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="filedepot"`)
			respondErr(w, r, unauthorizedError("missing bearer token"))
			return
		}

		claims, err := h.tokens.Verify(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="filedepot", error="invalid_token"`)
			respondErr(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireAdmin gates a handler on the admin role. Used per-route where
// admin and self-service endpoints share a subrouter.
func (h *handlers) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r.Context())
		if !ok || !claims.Role.Admin() {
			respondErr(w, r, forbidden("admin access required"))
			return
		}
		next(w, r)
	}
}

// clientIP extracts the originating address, honoring X-Forwarded-For
// when a reverse proxy sits in front.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
