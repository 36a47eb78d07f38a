package auth

import (
	"crypto/subtle"
	"strings"
)

// SecureEquals performs a timing-safe comparison of two strings.
// A length mismatch returns false rather than an error; the length check
// itself leaks only the lengths, which are not secret for fixed-format codes.
func SecureEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// FindBackupCodeMatch looks up a submitted backup code in the candidate list.
// Both sides are normalized (hyphens stripped, uppercased) before comparison.
// The full list is always scanned regardless of an early match so that the
// scan time does not reveal the matched position. Returns the first matching
// index or -1.
func FindBackupCodeMatch(input string, candidates []string) int {
	normalized := normalizeCode(input)
	if normalized == "" {
		return -1
	}

	match := -1
	for i, candidate := range candidates {
		if SecureEquals(normalized, normalizeCode(candidate)) && match == -1 {
			match = i
		}
	}
	return match
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
}
