package routes

import (
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/abuse"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/auth"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/captcha"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/handlers"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/middleware"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/repositories"
	pkghttp "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	twoFactorHandler *handlers.TwoFactorHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
	bans *abuse.BanStore,
	gate *captcha.Gate,
	ipConfig *pkghttp.IPConfig,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes. The ban check for login itself runs inside the
	// pipeline so rejections are logged with full context.
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login/verify", authHandler.VerifyTwoFactor)
	router.With(
		middleware.RateLimitByIP(rateLimitConfig),
		gate.Middleware("register", ipConfig),
	).Post("/auth/register", authHandler.Register)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.BanGuard(bans, ipConfig))
		r.Use(auth.Middleware(tokenManager))

		r.Route("/auth/2fa", func(r chi.Router) {
			r.Post("/setup", twoFactorHandler.Setup)
			r.Post("/enable", twoFactorHandler.Enable)
			r.Post("/disable", twoFactorHandler.Disable)
			r.Get("/status", twoFactorHandler.Status)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, "admin"))
			r.Get("/admin/banned-ips", adminHandler.ListBannedIPs)
			r.Post("/admin/banned-ips", adminHandler.BanIP)
			r.Post("/admin/banned-ips/unban", adminHandler.UnbanIP)
			r.Get("/admin/abuse-log", adminHandler.AbuseLog)
		})
	})
}
