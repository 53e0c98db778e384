package api

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/verse-scribe/internal/auth"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/observe"
)

// LoggingMiddleware logs HTTP requests and puts a request scoped logger
// into the context.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger := logging.GetGlobalLogger().WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		r = r.WithContext(logging.WithLogger(r.Context(), logger))

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logger.WithFields(map[string]interface{}{
			"status":   wrapped.statusCode,
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecoveryMiddleware recovers from panics and returns 500 error.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				respondAppError(w, r, apperrors.NewInternalError("an internal server error occurred", fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware adds CORS headers to responses.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+TimezoneHeader)
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MetricsMiddleware records request durations by route template
func MetricsMiddleware(m *observe.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			m.RecordHTTPRequest(r.Context(), r.Method, route, wrapped.statusCode, time.Since(start).Seconds())
		})
	}
}

// ProfileResolver maps verified claims to a profile id
type ProfileResolver interface {
	Resolve(ctx context.Context, claims *auth.Claims) (string, error)
}

// DevUserHeader carries the caller identity when token verification is
// disabled
const DevUserHeader = "X-User-ID"

// AuthMiddleware verifies the bearer token and resolves the caller's profile.
// With required unset, requests without a token may name their subject in
// DevUserHeader.
func AuthMiddleware(verifier *auth.Verifier, profiles ProfileResolver, required bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := requestClaims(r, verifier, required)
			if err != nil {
				respondAppError(w, r, err)
				return
			}

			ctx := r.Context()
			userID, err := profiles.Resolve(ctx, claims)
			if err != nil {
				respondAppError(w, r, err)
				return
			}

			ctx = auth.WithClaims(ctx, claims)
			ctx = auth.WithUserID(ctx, userID)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithUser(userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestClaims(r *http.Request, verifier *auth.Verifier, required bool) (*auth.Claims, error) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token != "" && verifier != nil {
		return verifier.Verify(token)
	}
	if !required {
		if subject := strings.TrimSpace(r.Header.Get(DevUserHeader)); subject != "" {
			claims := &auth.Claims{}
			claims.Subject = subject
			return claims, nil
		}
	}
	return nil, apperrors.NewAuthRequiredError("missing token")
}

// CompressionMiddleware adds gzip compression to responses.
func CompressionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check if client accepts gzip
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gz := gzip.NewWriter(w)
		defer gz.Close()

		gzw := &gzipResponseWriter{Writer: gz, ResponseWriter: w}
		next.ServeHTTP(gzw, r)
	})
}

// gzipResponseWriter wraps http.ResponseWriter with gzip compression.
type gzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}
