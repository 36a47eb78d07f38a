package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig bounds request volume per client IP over a sliding window
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultAuthRateLimit is the cap applied to login, second-factor and
// registration endpoints. It is a blunt transport-level brake; the per-IP
// failure tracker handles targeted escalation.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

// RateLimitByIP limits requests per client IP using the configured window
func RateLimitByIP(cfg RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down")
		}),
	)
}
