// Package logging writes one structured log line per API request.
package logging

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nomadhouse/nomadhouse/internal/middleware/realip"
)

type annotationsKey struct{}

// annotations collects attributes added by inner handlers
type annotations struct {
	mu    sync.Mutex
	attrs []any
}

// Annotate adds an attribute to the request log line. Inner middleware use
// it to report values resolved after logging started, such as the caller.
func Annotate(ctx context.Context, key string, value any) {
	if a, ok := ctx.Value(annotationsKey{}).(*annotations); ok {
		a.mu.Lock()
		a.attrs = append(a.attrs, key, value)
		a.mu.Unlock()
	}
}

// levelFor picks the log level of a finished request. Probes log at Debug so
// orchestrator health checks do not drown out ledger traffic.
func levelFor(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case path == "/health" || path == "/healthz" || path == "/readyz":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Middleware logs request_id, method, path, status, bytes, duration,
// client_ip and any attributes added with Annotate.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			notes := &annotations{}
			r = r.WithContext(context.WithValue(r.Context(), annotationsKey{}, notes))

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				attrs := []any{
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"client_ip", realip.GetClientIP(r),
				}
				notes.mu.Lock()
				attrs = append(attrs, notes.attrs...)
				notes.mu.Unlock()

				logger.Log(r.Context(), levelFor(r.URL.Path, status), "request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
