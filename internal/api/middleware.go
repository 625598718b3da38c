package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"govukmcp/internal/models"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the id assigned by requestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestIDMiddleware reuses a well-formed inbound X-Request-ID or assigns a
// new UUID.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses of the MCP transport working.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.InfoContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.ErrorContext(r.Context(), "Panic recovered", "error", err, "path", r.URL.Path)
				errorResp := models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError)
				errorResp.RequestID = RequestIDFromContext(r.Context())
				writeJSON(w, http.StatusInternalServerError, errorResp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// adminTokenMiddleware guards the rate limit administration endpoints with a
// static bearer token. An empty token disables them.
func adminTokenMiddleware(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deny := func(status int, code, message string) {
				errorResp := models.NewErrorResponse(message, code)
				errorResp.RequestID = RequestIDFromContext(r.Context())
				writeJSON(w, status, errorResp)
			}

			if token == "" {
				deny(http.StatusForbidden, models.ErrorCodeForbidden, "Admin API is disabled")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				deny(http.StatusUnauthorized, models.ErrorCodeUnauthorized, "Authorization required")
				return
			}

			const prefix = "Bearer "
			presented, ok := strings.CutPrefix(authHeader, prefix)
			if !ok {
				deny(http.StatusUnauthorized, models.ErrorCodeUnauthorized, "Invalid authorization format")
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				slog.WarnContext(r.Context(), "Invalid admin token",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				deny(http.StatusUnauthorized, models.ErrorCodeUnauthorized, "Invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
