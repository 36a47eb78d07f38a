package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/auth"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/backupcodes"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/config"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	pkglogger "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/logger"
)

// testModeCode is accepted in place of a real code only when
// TwoFactorConfig.TestMode is on; config.Load refuses that flag in production.
const testModeCode = "123456"

// TwoFactorService drives the per-user 2FA lifecycle:
// disabled -> pending-setup (secret generated, not enabled) -> enabled.
type TwoFactorService struct {
	users  UserStore
	totp   *auth.TOTPManager
	codec  *backupcodes.Codec
	cfg    config.TwoFactorConfig
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

// NewTwoFactorService creates a new two-factor service
func NewTwoFactorService(users UserStore, totp *auth.TOTPManager, codec *backupcodes.Codec, cfg config.TwoFactorConfig, logger *slog.Logger, audit *pkglogger.AuditLogger) *TwoFactorService {
	return &TwoFactorService{
		users:  users,
		totp:   totp,
		codec:  codec,
		cfg:    cfg,
		logger: logger,
		audit:  audit,
	}
}

// SetupResponse carries the provisioning material back to the client
type SetupResponse struct {
	SecretBase32  string `json:"secret"`
	OTPAuthURL    string `json:"otpauth_url"`
	QRCodeDataURL string `json:"qr_code"`
}

// VerifyResult is the outcome of a second-factor check during login
type VerifyResult struct {
	OK             bool
	UsedBackupCode bool
	RemainingCodes int
}

// BeginSetup generates a TOTP secret for the user and stores it with
// enabled=false. Re-running setup before verification replaces the pending
// secret; running it while 2FA is enabled is a conflict.
func (s *TwoFactorService) BeginSetup(ctx context.Context, userID string) (*SetupResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorEnabled {
		return nil, models.ErrTwoFactorAlreadySetup
	}

	secret, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		s.logger.Error("failed to generate TOTP secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	err = s.users.UpdateTwoFactor(ctx, userID, models.TwoFactorUpdate{
		Secret:  secret.SecretBase32,
		Enabled: false,
	})
	if err != nil {
		s.logger.Error("failed to store pending TOTP secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.LogTwoFactorChange("two_factor_setup_started", userID, true)

	return &SetupResponse{
		SecretBase32:  secret.SecretBase32,
		OTPAuthURL:    secret.OTPAuthURL,
		QRCodeDataURL: secret.QRCodeDataURL,
	}, nil
}

// VerifyAndEnable confirms the pending secret with a TOTP code, enables 2FA
// and issues a fresh backup-code batch. The plaintext codes are returned to
// the caller exactly once; afterwards only their count is retrievable.
func (s *TwoFactorService) VerifyAndEnable(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorEnabled {
		return nil, models.ErrTwoFactorAlreadySetup
	}
	if user.TwoFactorSecret == "" {
		return nil, models.ErrTwoFactorNotEnabled
	}

	if !s.verifyCode(user.TwoFactorSecret, code) {
		s.audit.LogTwoFactorChange("two_factor_enable", userID, false)
		return nil, models.ErrInvalidCode
	}

	codes, err := s.codec.Generate(s.cfg.BackupCodeCount, backupcodes.DefaultCodeLength)
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	err = s.users.UpdateTwoFactor(ctx, userID, models.TwoFactorUpdate{
		Secret:         user.TwoFactorSecret,
		Enabled:        true,
		Verified:       true,
		Method:         models.TwoFactorMethodApp,
		BackupCodesRaw: encodeBackupCodes(codes),
	})
	if err != nil {
		s.logger.Error("failed to enable two-factor", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.LogTwoFactorChange("two_factor_enable", userID, true)
	s.logger.Info("two-factor enabled", slog.String("user_id", userID))

	return codes, nil
}

// VerifyLogin checks a submitted second-factor code: TOTP first, then the
// backup-code fallback. A matched backup code is consumed atomically with
// the authentication decision. The caller cannot tell which check failed.
func (s *TwoFactorService) VerifyLogin(ctx context.Context, user *models.User, code string) (*VerifyResult, error) {
	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		return nil, models.ErrTwoFactorNotEnabled
	}

	if s.verifyCode(user.TwoFactorSecret, code) {
		remaining := len(s.codec.Parse(user.BackupCodesRaw))
		return &VerifyResult{OK: true, RemainingCodes: remaining}, nil
	}

	codes := s.codec.Parse(user.BackupCodesRaw)
	idx := auth.FindBackupCodeMatch(code, codes)
	if idx < 0 {
		return &VerifyResult{OK: false}, nil
	}

	remaining := append(append([]string{}, codes[:idx]...), codes[idx+1:]...)
	err := s.users.UpdateTwoFactor(ctx, user.ID, models.TwoFactorUpdate{
		Secret:         user.TwoFactorSecret,
		Enabled:        true,
		Verified:       user.TwoFactorVerified,
		Method:         user.TwoFactorMethod,
		BackupCodesRaw: encodeBackupCodes(remaining),
	})
	if err != nil {
		// The code must not authenticate without being consumed.
		s.logger.Error("failed to consume backup code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("backup code consumed",
		slog.String("user_id", user.ID),
		slog.Int("remaining", len(remaining)))

	return &VerifyResult{OK: true, UsedBackupCode: true, RemainingCodes: len(remaining)}, nil
}

// Disable turns 2FA off after a valid TOTP or backup code, clearing the
// secret, backup codes, method tag and flags.
func (s *TwoFactorService) Disable(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.TwoFactorEnabled {
		return models.ErrTwoFactorNotEnabled
	}

	result, err := s.VerifyLogin(ctx, user, code)
	if err != nil {
		return err
	}
	if !result.OK {
		s.audit.LogTwoFactorChange("two_factor_disable", userID, false)
		return models.ErrInvalidCode
	}

	err = s.users.UpdateTwoFactor(ctx, userID, models.TwoFactorUpdate{})
	if err != nil {
		s.logger.Error("failed to disable two-factor", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.LogTwoFactorChange("two_factor_disable", userID, true)
	s.logger.Info("two-factor disabled", slog.String("user_id", userID))
	return nil
}

// StatusResponse reports 2FA state without exposing secrets or codes
type StatusResponse struct {
	Enabled         bool   `json:"enabled"`
	Method          string `json:"method,omitempty"`
	BackupCodesLeft int    `json:"backup_codes_left"`
	PendingSetup    bool   `json:"pending_setup"`
}

// Status returns the user's 2FA state. Plaintext backup codes are never
// retrievable after issuance, only their count.
func (s *TwoFactorService) Status(ctx context.Context, userID string) (*StatusResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &StatusResponse{
		Enabled:      user.TwoFactorEnabled,
		Method:       user.TwoFactorMethod,
		PendingSetup: user.HasPendingSetup(),
	}
	if user.TwoFactorEnabled {
		status.BackupCodesLeft = len(s.codec.Parse(user.BackupCodesRaw))
	}
	return status, nil
}

// verifyCode checks a TOTP code, honoring the test-mode bypass when enabled
func (s *TwoFactorService) verifyCode(secret, code string) bool {
	if s.cfg.TestMode && code == testModeCode {
		s.logger.Warn("two-factor test mode code accepted")
		return true
	}
	return s.totp.ValidateCode(secret, code)
}

// encodeBackupCodes writes the canonical storage form: a JSON array. The
// codec still tolerates every legacy shape on the read side.
func encodeBackupCodes(codes []string) string {
	data, err := json.Marshal(codes)
	if err != nil {
		return "[]"
	}
	return string(data)
}
