// Package auth hashes API tokens so they can be compared and shown without
// keeping the raw value around.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashKey returns a SHA-256 hash of the key.
func HashKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Matches reports whether key hashes to hash, in constant time.
func Matches(key, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashKey(key)), []byte(hash)) == 1
}

// Fingerprint is a short, non-reversible label for a token, safe to print.
func Fingerprint(key string) string {
	if strings.TrimSpace(key) == "" {
		return ""
	}
	return HashKey(key)[:12]
}
