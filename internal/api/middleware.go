package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/serroba/docstore/internal/acl"
	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/metrics"
	"golang.org/x/time/rate"
)

const headerUserID = "X-User-Id"

var errRateLimited = &docerr.Error{
	Status:  http.StatusTooManyRequests,
	Name:    "too_many_requests",
	Message: "write rate limit exceeded",
}

// RateLimit rejects requests once limiter runs dry. A nil limiter lets
// everything through.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				_ = writeJSON(w, http.StatusTooManyRequests, errRateLimited)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserMiddleware carries the X-User-Id header into the request context.
// With required set, requests without the header are rejected.
func UserMiddleware(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(headerUserID)
			if userID == "" {
				if required {
					_ = writeJSON(w, http.StatusUnauthorized, docerr.ErrUnauthorized.WithMessage("missing X-User-Id header"))

					return
				}

				next.ServeHTTP(w, r)

				return
			}

			next.ServeHTTP(w, r.WithContext(acl.WithUser(r.Context(), userID)))
		})
	}
}

// RequestLogger logs and counts incoming requests.
func RequestLogger(log *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			m.RecordRequest(r.Method, route, strconv.Itoa(status))

			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"request_id", middleware.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
