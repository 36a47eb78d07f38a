package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/auth"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/services"
	pkghttp "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/http"
)

// TwoFactorServiceInterface defines the 2FA lifecycle as the handler sees it
type TwoFactorServiceInterface interface {
	BeginSetup(ctx context.Context, userID string) (*services.SetupResponse, error)
	VerifyAndEnable(ctx context.Context, userID, code string) ([]string, error)
	Disable(ctx context.Context, userID, code string) error
	Status(ctx context.Context, userID string) (*services.StatusResponse, error)
}

// TwoFactorHandler handles 2FA lifecycle HTTP requests
type TwoFactorHandler struct {
	service TwoFactorServiceInterface
}

// NewTwoFactorHandler creates a new TwoFactorHandler
func NewTwoFactorHandler(service TwoFactorServiceInterface) *TwoFactorHandler {
	return &TwoFactorHandler{service: service}
}

// EnableRequest carries the confirmation code for setup or disable
type EnableRequest struct {
	Code string `json:"code" validate:"required"`
}

// BackupCodesResponse returns the one-time plaintext backup codes
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
	// Warning is repeated in the API docs; codes are shown exactly once
	Warning string `json:"warning"`
}

// Setup starts 2FA enrollment and returns provisioning material
func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	resp, err := h.service.BeginSetup(r.Context(), claims.UserID)
	if err != nil {
		writeTwoFactorError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Enable confirms the pending secret and returns backup codes
func (h *TwoFactorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req EnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	codes, err := h.service.VerifyAndEnable(r.Context(), claims.UserID, req.Code)
	if err != nil {
		writeTwoFactorError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, BackupCodesResponse{
		BackupCodes: codes,
		Warning:     "Store these codes securely. They will not be shown again.",
	})
}

// Disable turns off 2FA after verifying a valid code
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req EnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), claims.UserID, req.Code); err != nil {
		writeTwoFactorError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// Status reports the caller's 2FA state
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), claims.UserID)
	if err != nil {
		writeTwoFactorError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

func writeTwoFactorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrTwoFactorAlreadySetup):
		pkghttp.WriteConflict(w, "Two-factor authentication is already enabled")
	case errors.Is(err, models.ErrTwoFactorNotEnabled):
		pkghttp.WriteBadRequest(w, "Two-factor authentication is not set up")
	case errors.Is(err, models.ErrInvalidCode):
		pkghttp.WriteUnauthorized(w, "Invalid verification code")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	default:
		pkghttp.WriteInternalError(w, "Operation failed")
	}
}
