package auth

import (
	"testing"
	"time"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-secret-key-for-token-tests", 15*time.Minute, 7*24*time.Hour, 5*time.Minute)
}

func TestTokenRoundTrip(t *testing.T) {
	tm := newTestTokenManager()

	tests := []struct {
		name     string
		generate func(userID, email string) (string, error)
		wantType string
	}{
		{"access", tm.GenerateAccessToken, models.TokenTypeAccess},
		{"refresh", tm.GenerateRefreshToken, models.TokenTypeRefresh},
		{"mfa", tm.GenerateMFAToken, models.TokenTypeMFA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tt.generate("user-123", "trader@example.com")
			require.NoError(t, err)

			claims, err := tm.ValidateToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, claims.Type)
			assert.Equal(t, "user-123", claims.UserID)
			assert.Equal(t, "trader@example.com", claims.Email)
			assert.NotEmpty(t, claims.ID, "JTI should be set")
		})
	}
}

func TestValidateToken_RejectsTampered(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.GenerateAccessToken("user-123", "trader@example.com")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token + "x")
	assert.Error(t, err)
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	tm := newTestTokenManager()
	other := NewTokenManager("a-completely-different-secret-key", 15*time.Minute, 7*24*time.Hour, 5*time.Minute)

	token, err := other.GenerateAccessToken("user-123", "trader@example.com")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret-key-for-token-tests", -1*time.Minute, 7*24*time.Hour, 5*time.Minute)

	token, err := tm.GenerateAccessToken("user-123", "trader@example.com")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	tm := newTestTokenManager()

	_, err := tm.ValidateToken("not.a.token")
	assert.Error(t, err)

	_, err = tm.ValidateToken("")
	assert.Error(t, err)
}
