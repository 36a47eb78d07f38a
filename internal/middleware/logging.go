package middleware

import (
	"log/slog"
	"net/http"
	"time"

	pkglogger "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// SecureLogger logs each request after the handler runs, redacting query
// strings that carry credentials or tokens. Server errors log at error level
// so they surface in alerting without a separate filter.
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				target := r.URL.Path
				if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
					target += "?[REDACTED]"
				} else if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}

				level := slog.LevelInfo
				switch {
				case ww.Status() >= 500:
					level = slog.LevelError
				case ww.Status() >= 400:
					level = slog.LevelWarn
				}

				logger.Log(r.Context(), level, "http_request",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("target", target),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("elapsed", time.Since(start)),
					slog.String("remote_addr", r.RemoteAddr),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
