package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	tm := NewTOTPManager("EvokeEssence")

	secret, err := tm.GenerateSecret("trader@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, secret.SecretBase32)
	assert.Contains(t, secret.OTPAuthURL, "otpauth://totp/")
	assert.Contains(t, secret.OTPAuthURL, "EvokeEssence")
	assert.True(t, strings.HasPrefix(secret.QRCodeDataURL, "data:image/png;base64,"))
}

func TestValidateCode_AcceptsCurrentCode(t *testing.T) {
	tm := NewTOTPManager("EvokeEssence")

	secret, err := tm.GenerateSecret("trader@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret.SecretBase32, time.Now())
	require.NoError(t, err)

	assert.True(t, tm.ValidateCode(secret.SecretBase32, code))
}

func TestValidateCode_ToleratesClockDrift(t *testing.T) {
	tm := NewTOTPManager("EvokeEssence")

	secret, err := tm.GenerateSecret("trader@example.com")
	require.NoError(t, err)

	// One step behind and one step ahead both fall inside the skew window
	for _, offset := range []time.Duration{-30 * time.Second, 30 * time.Second} {
		code, err := totp.GenerateCode(secret.SecretBase32, time.Now().Add(offset))
		require.NoError(t, err)
		assert.True(t, tm.ValidateCode(secret.SecretBase32, code), "offset %s", offset)
	}
}

func TestValidateCode_RejectsCodeOutsideSkewWindow(t *testing.T) {
	tm := NewTOTPManager("EvokeEssence")

	secret, err := tm.GenerateSecret("trader@example.com")
	require.NoError(t, err)

	now := time.Now()
	inWindow := make(map[string]bool)
	for offset := -60 * time.Second; offset <= 90*time.Second; offset += 30 * time.Second {
		code, err := totp.GenerateCode(secret.SecretBase32, now.Add(offset))
		require.NoError(t, err)
		inWindow[code] = true
	}

	// One past the accepted skew on the stale side; two past on the future
	// side because validation reads the clock again and may have crossed a
	// step boundary since `now` was captured.
	for _, offset := range []time.Duration{-90 * time.Second, 120 * time.Second} {
		code, err := totp.GenerateCode(secret.SecretBase32, now.Add(offset))
		require.NoError(t, err)
		if inWindow[code] {
			// A stale code can collide with an in-window one; nothing to assert
			continue
		}
		assert.False(t, tm.ValidateCode(secret.SecretBase32, code), "offset %s", offset)
	}
}

func TestValidateCode_RejectsBadInput(t *testing.T) {
	tm := NewTOTPManager("EvokeEssence")

	secret, err := tm.GenerateSecret("trader@example.com")
	require.NoError(t, err)

	assert.False(t, tm.ValidateCode(secret.SecretBase32, "000000"))
	assert.False(t, tm.ValidateCode(secret.SecretBase32, ""))
	assert.False(t, tm.ValidateCode(secret.SecretBase32, "not-a-code"))
	assert.False(t, tm.ValidateCode("", "123456"))
}

func TestValidateCode_RejectsCodeForOtherSecret(t *testing.T) {
	tm := NewTOTPManager("EvokeEssence")

	first, err := tm.GenerateSecret("a@example.com")
	require.NoError(t, err)
	second, err := tm.GenerateSecret("b@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(first.SecretBase32, time.Now())
	require.NoError(t, err)

	assert.False(t, tm.ValidateCode(second.SecretBase32, code))
}
