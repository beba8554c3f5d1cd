package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashStrings hashes an ordered list of strings. Elements are separated by a
// NUL byte so ["ab", "c"] and ["a", "bc"] differ.
func HashStrings(parts []string) string {
	return Hash([]byte(strings.Join(parts, "\x00")))
}
