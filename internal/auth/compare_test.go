package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecureEquals(t *testing.T) {
	assert.True(t, SecureEquals("AAAA-BBBB", "AAAA-BBBB"))
	assert.False(t, SecureEquals("AAAA-BBBB", "AAAA-BBBC"))
	assert.False(t, SecureEquals("AAAA-BBBB", "AAAA-BBB"))
	assert.False(t, SecureEquals("", "AAAA"))
	assert.True(t, SecureEquals("", ""))
}

func TestFindBackupCodeMatch(t *testing.T) {
	candidates := []string{"1111-AAAA", "2222-BBBB", "3333-CCCC"}

	assert.Equal(t, 0, FindBackupCodeMatch("1111-AAAA", candidates))
	assert.Equal(t, 1, FindBackupCodeMatch("2222-BBBB", candidates))
	assert.Equal(t, 2, FindBackupCodeMatch("3333-CCCC", candidates))
	assert.Equal(t, -1, FindBackupCodeMatch("4444-DDDD", candidates))
}

func TestFindBackupCodeMatch_NormalizesInput(t *testing.T) {
	candidates := []string{"1111-AAAA", "2222-BBBB"}

	assert.Equal(t, 1, FindBackupCodeMatch("2222bbbb", candidates))
	assert.Equal(t, 1, FindBackupCodeMatch("2222-bbbb", candidates))
	assert.Equal(t, 0, FindBackupCodeMatch("  1111-aaaa  ", candidates))
}

func TestFindBackupCodeMatch_NormalizesCandidates(t *testing.T) {
	candidates := []string{"1111aaaa", "2222-bbbb"}

	assert.Equal(t, 0, FindBackupCodeMatch("1111-AAAA", candidates))
	assert.Equal(t, 1, FindBackupCodeMatch("2222-BBBB", candidates))
}

func TestFindBackupCodeMatch_EmptyInputs(t *testing.T) {
	assert.Equal(t, -1, FindBackupCodeMatch("", []string{"1111-AAAA"}))
	assert.Equal(t, -1, FindBackupCodeMatch("1111-AAAA", nil))
	assert.Equal(t, -1, FindBackupCodeMatch("1111-AAAA", []string{}))
}

func TestFindBackupCodeMatch_FirstOfDuplicates(t *testing.T) {
	candidates := []string{"1111-AAAA", "1111-AAAA"}
	assert.Equal(t, 0, FindBackupCodeMatch("1111-AAAA", candidates))
}
