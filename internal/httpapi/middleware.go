package httpapi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rafaeljc/superposition/internal/logger"
	"github.com/rafaeljc/superposition/internal/observability"
)

// UserEmailHeader names the caller on authenticated requests.
const UserEmailHeader = "X-User-Email"

// AnonymousUser is the principal of requests served without authentication.
const AnonymousUser = "anonymous"

type principalKey struct{}

// PrincipalFromContext returns the authenticated caller, or AnonymousUser.
func PrincipalFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey{}).(string); ok && p != "" {
		return p
	}
	return AnonymousUser
}

// RequestLogger stores a request-scoped logger (carrying the request id) in the
// context and logs every completed request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := base.With(slog.String("request_id", middleware.GetReqID(r.Context())))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			// Info for success, Warn for 4xx, Error for 5xx.
			level := slog.LevelInfo
			status := ww.Status()
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}

			reqLog.Log(r.Context(), level, "HTTP request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.String("duration", time.Since(start).String()),
				slog.String("remote_ip", r.RemoteAddr),
			)
		})
	}
}

// Metrics records request count and latency labelled with the chi route
// pattern, never the raw path. Unrouted requests collapse to "not_found".
func Metrics(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := "not_found"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			observability.HTTPReqDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
			observability.HTTPReqTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(status)).Inc()
		})
	}
}

// Authenticate checks "Authorization: Bearer <key>" against the SHA-256 hex
// digest apiKeyHash, then records the X-User-Email header as the principal.
// When skip is set every request passes as AnonymousUser.
func Authenticate(apiKeyHash string, skip bool) func(http.Handler) http.Handler {
	expected := []byte(strings.ToLower(apiKeyHash))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip {
				next.ServeHTTP(w, r)
				return
			}

			key, ok := bearerToken(r)
			if !ok {
				Render(w, r, http.StatusUnauthorized, ErrorResponse{
					Code:    CodeUnauthorized,
					Message: "missing bearer token",
				})
				return
			}

			sum := sha256.Sum256([]byte(key))
			got := []byte(hex.EncodeToString(sum[:]))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				logger.FromContext(r.Context()).Warn("rejected request with invalid API key")
				Render(w, r, http.StatusUnauthorized, ErrorResponse{
					Code:    CodeUnauthorized,
					Message: "invalid API key",
				})
				return
			}

			principal := strings.TrimSpace(r.Header.Get(UserEmailHeader))
			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
