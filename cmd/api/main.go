package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/abuse"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/auth"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/background"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/backupcodes"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/captcha"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/config"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/database"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/handlers"
	middlewareCustom "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/middleware"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/repositories"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/routes"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/services"
	pkgauth "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/auth"
	pkghttp "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/http"
	pkglogger "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	userRepo := repositories.NewUserRepository(db)

	// Abuse defense: event log, ban store, failed-login tracker
	eventLog := abuse.NewEventLog(cfg.Abuse.AbuseLogPath, logger)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var alerts abuse.AlertDispatcher
	if cfg.Alert.Enabled {
		sender, err := services.NewSESAlertService(cfg.Alert.AWSRegion, cfg.Alert.FromAddress, cfg.Alert.ToAddress, logger)
		if err != nil {
			logger.Error("failed to initialize alert service", slog.Any("error", err))
			os.Exit(1)
		}
		dispatcher := background.NewAlertDispatcher(sender, cfg.Alert.QueueSize, logger)
		go dispatcher.Start(bgCtx)
		alerts = dispatcher
	}

	banStore := abuse.NewBanStore(
		cfg.Abuse.BanFilePath,
		cfg.Abuse.BaseBanDuration,
		cfg.Abuse.MaxBanMultiplier,
		eventLog,
		alerts,
		logger,
	)

	tracker := abuse.NewFailedLoginTracker(
		banStore,
		cfg.Abuse.CaptchaThreshold,
		cfg.Abuse.BanThreshold,
		cfg.Abuse.SweepInterval,
		cfg.Abuse.StaleAfter,
		logger,
	)
	go tracker.Start(bgCtx)

	// CAPTCHA gate; low-score verifications pre-seed the ban escalator
	captchaGate := captcha.NewGate(cfg.Recaptcha, cfg.Server.IsProduction(), banStore, logger)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
		cfg.Auth.MFATokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)
	totpManager := auth.NewTOTPManager(cfg.TwoFactor.Issuer)
	codec := backupcodes.NewCodec(logger)

	twoFactorService := services.NewTwoFactorService(userRepo, totpManager, codec, cfg.TwoFactor, logger, auditLogger)
	loginService := services.NewLoginService(userRepo, tokenManager, twoFactorService, tracker, banStore, captchaGate, logger, auditLogger)
	accountService := services.NewAccountService(userRepo, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	authHandler := handlers.NewAuthHandler(loginService, accountService, ipConfig)
	twoFactorHandler := handlers.NewTwoFactorHandler(twoFactorService)
	adminHandler := handlers.NewAdminHandler(banStore, eventLog, auditLogger)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, twoFactorHandler, adminHandler, tokenManager, userRepo, banStore, captchaGate, ipConfig)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	bgCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = userRepo.Create(ctx, &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         "admin",
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
