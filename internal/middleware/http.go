package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptmarket/internal/auth"
	"promptmarket/internal/models"
	"promptmarket/internal/rate"
	"promptmarket/internal/store"
	"promptmarket/internal/util"
)

func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		r = r.WithContext(WithRequestID(r.Context(), rid))
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// UserLookup resolves Basic auth identities.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// AdminBasicAuth admits requests whose Basic credentials match an admin user.
// The login may be a username or an email address.
func AdminBasicAuth(users UserLookup, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := RequestID(r.Context())
			login, pw, ok := r.BasicAuth()
			if !ok || strings.TrimSpace(login) == "" || pw == "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="promptmarket-admin", charset="UTF-8"`)
				util.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", rid)
				return
			}
			var u models.User
			var err error
			if strings.Contains(login, "@") {
				u, err = users.GetUserByEmail(r.Context(), login)
			} else {
				u, err = users.GetUserByUsername(r.Context(), login)
			}
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				log.Error("admin lookup failed", "request_id", rid, "error", err)
				util.WriteError(w, http.StatusInternalServerError, "internal", "internal error", rid)
				return
			}
			if err != nil || !auth.VerifyPassword(u.PasswordHash, pw) {
				w.Header().Set("WWW-Authenticate", `Basic realm="promptmarket-admin", charset="UTF-8"`)
				util.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", rid)
				return
			}
			if !u.IsAdmin {
				util.WriteError(w, http.StatusForbidden, "forbidden", "admin role required", rid)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RateLimit lets requests through when the limiter backend is down.
func RateLimit(l rate.Limiter, route string, limit int, window time.Duration, trustProxy bool, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + ":" + ClientIP(r, trustProxy)
			ok, err := l.Allow(r.Context(), key, limit, window)
			if err != nil {
				log.Warn("rate limiter unavailable", "route", route, "error", err)
				ok = true
			}
			if !ok {
				w.Header().Set("Retry-After", retryAfter(window))
				util.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", RequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func RequestLogger(log *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			level := slog.LevelInfo
			if sr.status >= 500 {
				level = slog.LevelError
			}
			log.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sr.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", RequestID(r.Context()),
				"remote_ip", ClientIP(r, trustProxy),
			)
		})
	}
}
