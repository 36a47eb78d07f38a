package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/abuse"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/auth"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/captcha"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	pkgauth "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/auth"
	pkglogger "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/logger"
)

// LoginStatus classifies a login attempt's outcome. Rejections are statuses,
// not errors; errors are reserved for infrastructure failures.
type LoginStatus int

const (
	StatusOK LoginStatus = iota
	StatusBanned
	StatusCaptchaRequired
	StatusCaptchaFailed
	StatusInvalidCredentials
	StatusTwoFactorRequired
	StatusInvalidCode
)

// LoginResult is the orchestrator's decision for one attempt
type LoginResult struct {
	Status       LoginStatus
	User         *models.User
	AccessToken  string
	RefreshToken string
	MFAToken     string
	// ShowCaptcha tells the client to present a challenge on the next try
	ShowCaptcha bool
}

// FailureTracker is the slice of the failed-login tracker the orchestrator needs
type FailureTracker interface {
	RecordFailure(ip string) abuse.FailureOutcome
	Reset(ip string)
	ShouldShowCaptcha(ip string) bool
}

// LoginService runs the full login pipeline: IP ban gate, captcha gate,
// credential check, failed-attempt bookkeeping and second-factor hand-off.
type LoginService struct {
	users   UserStore
	tokens  *auth.TokenManager
	twofa   *TwoFactorService
	tracker FailureTracker
	bans    *abuse.BanStore
	gate    *captcha.Gate
	logger  *slog.Logger
	audit   *pkglogger.AuditLogger
}

// NewLoginService creates a new login service
func NewLoginService(users UserStore, tokens *auth.TokenManager, twofa *TwoFactorService, tracker FailureTracker, bans *abuse.BanStore, gate *captcha.Gate, logger *slog.Logger, audit *pkglogger.AuditLogger) *LoginService {
	return &LoginService{
		users:   users,
		tokens:  tokens,
		twofa:   twofa,
		tracker: tracker,
		bans:    bans,
		gate:    gate,
		logger:  logger,
		audit:   audit,
	}
}

// LoginRequestContext carries the transport-level facts the pipeline gates on
type LoginRequestContext struct {
	IP           string
	CaptchaToken string
	Headers      http.Header
}

// Login processes a password login attempt from the given client IP.
// The ban check runs before anything else so banned clients learn nothing,
// not even whether a captcha would have been required.
func (s *LoginService) Login(ctx context.Context, email, password string, req LoginRequestContext) (*LoginResult, error) {
	if s.bans.IsBanned(req.IP) {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login",
			IPAddress:     req.IP,
			FailureReason: "ip_banned",
		})
		return &LoginResult{Status: StatusBanned}, nil
	}

	if s.tracker.ShouldShowCaptcha(req.IP) {
		if req.CaptchaToken == "" {
			return &LoginResult{Status: StatusCaptchaRequired, ShowCaptcha: true}, nil
		}
		if !s.gate.Validate(ctx, req.CaptchaToken, "login", req.IP, req.Headers) {
			s.logger.Warn("captcha rejected on login", slog.String("ip", req.IP))
			return &LoginResult{Status: StatusCaptchaFailed, ShowCaptcha: true}, nil
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.recordFailure(email, req.IP), nil
		}
		return nil, err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return s.recordFailure(email, req.IP), nil
	}

	s.tracker.Reset(req.IP)
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		IPAddress: req.IP,
		Success:   true,
	})

	if user.TwoFactorEnabled {
		mfaToken, err := s.tokens.GenerateMFAToken(user.ID, user.Email)
		if err != nil {
			s.logger.Error("failed to generate MFA token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		return &LoginResult{Status: StatusTwoFactorRequired, User: user, MFAToken: mfaToken}, nil
	}

	return s.issueSession(user)
}

// VerifySecondFactor completes a login that paused at the 2FA step. Failed
// codes count against the client IP the same way failed passwords do, so an
// attacker cannot grind codes from a stolen password without tripping the
// ban escalator.
func (s *LoginService) VerifySecondFactor(ctx context.Context, mfaToken, code string, req LoginRequestContext) (*LoginResult, error) {
	if s.bans.IsBanned(req.IP) {
		return &LoginResult{Status: StatusBanned}, nil
	}

	claims, err := s.tokens.ValidateToken(mfaToken)
	if err != nil || claims.Type != models.TokenTypeMFA {
		return &LoginResult{Status: StatusInvalidCredentials}, nil
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	result, err := s.twofa.VerifyLogin(ctx, user, code)
	if err != nil {
		if errors.Is(err, models.ErrTwoFactorNotEnabled) {
			return &LoginResult{Status: StatusInvalidCredentials}, nil
		}
		return nil, err
	}
	if !result.OK {
		outcome := s.tracker.RecordFailure(req.IP)
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "two_factor_verify",
			UserID:        user.ID,
			IPAddress:     req.IP,
			FailureReason: "invalid_code",
		})
		if outcome.Banned {
			return &LoginResult{Status: StatusBanned}, nil
		}
		return &LoginResult{Status: StatusInvalidCode, ShowCaptcha: outcome.ShowCaptcha}, nil
	}

	s.tracker.Reset(req.IP)
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "two_factor_verify",
		UserID:    user.ID,
		IPAddress: req.IP,
		Success:   true,
	})
	if result.UsedBackupCode {
		s.logger.Info("login completed with backup code",
			slog.String("user_id", user.ID),
			slog.Int("codes_remaining", result.RemainingCodes))
	}

	return s.issueSession(user)
}

// recordFailure books a failed attempt and maps the outcome to a result.
// The response is identical for unknown emails and wrong passwords.
func (s *LoginService) recordFailure(email, ip string) *LoginResult {
	outcome := s.tracker.RecordFailure(ip)
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login",
		IPAddress:     ip,
		FailureReason: "invalid_credentials",
	})
	s.logger.Info("failed login attempt",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("ip", ip))

	if outcome.Banned {
		return &LoginResult{Status: StatusBanned}
	}
	return &LoginResult{Status: StatusInvalidCredentials, ShowCaptcha: outcome.ShowCaptcha}
}

func (s *LoginService) issueSession(user *models.User) (*LoginResult, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &LoginResult{
		Status:       StatusOK,
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
