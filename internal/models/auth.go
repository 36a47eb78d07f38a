package models

import "github.com/golang-jwt/jwt/v5"

// Token types issued by the TokenManager
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	// TokenTypeMFA marks a half-authenticated session: credentials verified,
	// second factor still pending.
	TokenTypeMFA = "mfa"
)

// TokenClaims are the JWT claims carried by all session tokens
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
