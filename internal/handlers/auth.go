package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/services"
	pkghttp "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/http"
)

// LoginServiceInterface defines the login pipeline as the handler sees it
type LoginServiceInterface interface {
	Login(ctx context.Context, email, password string, req services.LoginRequestContext) (*services.LoginResult, error)
	VerifySecondFactor(ctx context.Context, mfaToken, code string, req services.LoginRequestContext) (*services.LoginResult, error)
}

// AccountServiceInterface defines account registration
type AccountServiceInterface interface {
	Register(ctx context.Context, email, password, name string) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	login    LoginServiceInterface
	accounts AccountServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(login LoginServiceInterface, accounts AccountServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		login:    login,
		accounts: accounts,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12"`
	Name     string `json:"name" validate:"required,min=1"`
}

// VerifyCodeRequest represents the request body for the second-factor step
type VerifyCodeRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// LoginResponse is the success body for a fully authenticated login
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// TwoFactorPendingResponse tells the client to complete the second factor
type TwoFactorPendingResponse struct {
	RequiresTwoFactor bool   `json:"requires_two_factor"`
	MFAToken          string `json:"mfa_token"`
}

// UserResponse is the public shape of an account
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// Login handles the password step of authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	result, err := h.login.Login(r.Context(), req.Email, req.Password, services.LoginRequestContext{
		IP:           pkghttp.ExtractClientIP(r, h.ipConfig),
		CaptchaToken: req.CaptchaToken,
		Headers:      r.Header,
	})
	if err != nil {
		pkghttp.WriteInternalError(w, "Login failed")
		return
	}

	h.writeLoginResult(w, result)
}

// VerifyTwoFactor handles the second-factor step of authentication
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.login.VerifySecondFactor(r.Context(), req.MFAToken, req.Code, services.LoginRequestContext{
		IP:      pkghttp.ExtractClientIP(r, h.ipConfig),
		Headers: r.Header,
	})
	if err != nil {
		pkghttp.WriteInternalError(w, "Verification failed")
		return
	}

	h.writeLoginResult(w, result)
}

// Register handles account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "An account with this email already exists")
			return
		}
		pkghttp.WriteInternalError(w, "Registration failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// writeLoginResult maps a pipeline decision onto the wire. Banned clients and
// bad credentials share deliberately uninformative messages.
func (h *AuthHandler) writeLoginResult(w http.ResponseWriter, result *services.LoginResult) {
	switch result.Status {
	case services.StatusOK:
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			User:         toUserResponse(result.User),
		})
	case services.StatusTwoFactorRequired:
		pkghttp.WriteJSON(w, http.StatusOK, TwoFactorPendingResponse{
			RequiresTwoFactor: true,
			MFAToken:          result.MFAToken,
		})
	case services.StatusBanned:
		pkghttp.WriteForbidden(w, "Access temporarily restricted")
	case services.StatusCaptchaRequired:
		pkghttp.WriteError(w, http.StatusForbidden, "captcha_required", "Captcha verification required")
	case services.StatusCaptchaFailed:
		pkghttp.WriteError(w, http.StatusForbidden, "captcha_failed", "Captcha verification failed")
	case services.StatusInvalidCredentials, services.StatusInvalidCode:
		if result.ShowCaptcha {
			w.Header().Set("X-Captcha-Required", "true")
		}
		pkghttp.WriteUnauthorized(w, "Invalid credentials")
	default:
		pkghttp.WriteInternalError(w, "Login failed")
	}
}
