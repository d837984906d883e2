package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/service"
)

// Request headers carrying the caller identity
const (
	HeaderUserID    = "X-User-ID"
	HeaderUsername  = "X-Username"
	HeaderRequestID = "X-Request-ID"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserIDFromContext returns the caller id set by IdentityMiddleware, or ""
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// LoggingMiddleware attaches a request-scoped logger and logs each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, requestID)

		logger := logging.GetGlobalLogger().WithField("requestId", requestID)
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(logging.WithLogger(r.Context(), logger)))

		logger.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     wrapped.statusCode,
			"durationMs": time.Since(start).Milliseconds(),
			"remoteAddr": r.RemoteAddr,
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
			if err := recover(); err != nil {
				logging.FromContext(r.Context()).WithField("panic", err).Error("Recovered from panic")
				respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal server error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware adds CORS headers to responses.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-Username, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IdentityMiddleware resolves the X-User-ID caller, registering unknown users on
// first contact so that submissions and votes can reference them.
func IdentityMiddleware(users UserServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if userID == "" || users == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if res := users.GetUser(ctx, userID); !res.Success {
				if !apperrors.IsCode(res.Err, apperrors.CodeNotFound) {
					respondResult(w, http.StatusOK, res.Result, nil)
					return
				}
				reg := users.RegisterUser(ctx, &service.RegisterUserInput{
					ID:       userID,
					Username: r.Header.Get(HeaderUsername),
				})
				if !reg.Success {
					respondResult(w, http.StatusOK, reg.Result, nil)
					return
				}
				logging.FromContext(ctx).WithField("userId", userID).Info("Registered new user")
			}

			ctx = context.WithValue(ctx, userIDKey, userID)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithField("userId", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireUser returns the caller id, answering 401 when the request is anonymous
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header is required", nil)
		return "", false
	}
	return userID, true
}
