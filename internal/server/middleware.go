package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tgdrive/filestore/internal/logging"
	"go.uber.org/zap"
)

type Middleware = func(http.Handler) http.Handler

func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), lg)))
		})
	}
}

// RequestLogger writes one line per request. Paths in skip are not logged.
func RequestLogger(lg *zap.Logger, skip ...string) Middleware {
	skipPaths := make(map[string]bool, len(skip))
	for _, path := range skip {
		skipPaths[path] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				if skipPaths[r.URL.Path] {
					return
				}
				fields := []zap.Field{
					zap.Int("status", ww.Status()),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("ip", r.RemoteAddr),
					zap.String("user-agent", r.UserAgent()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
				}
				if ww.Status() >= http.StatusInternalServerError {
					lg.Error("request", fields...)
					return
				}
				lg.Info("request", fields...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
