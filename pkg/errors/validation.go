package errors

import (
	"strings"
	"unicode"
)

// maxIDLength bounds resource ids accepted from the CLI and HTTP API.
const maxIDLength = 1024

// ValidateResourceID validates a resource id received from user input.
// Ids are opaque to the engine, so only obviously broken input is rejected:
//   - empty ids
//   - ids longer than 1024 bytes
//   - control characters and null bytes
//   - backslashes (ids are slash-separated)
func ValidateResourceID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidID, "resource id cannot be empty")
	}
	if len(id) > maxIDLength {
		return New(ErrCodeInvalidID, "resource id too long (max %d bytes)", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidID, "resource id contains control characters")
		}
	}
	if strings.Contains(id, "\\") {
		return New(ErrCodeInvalidID, "resource id must use forward slashes: %q", id)
	}
	return nil
}

// ValidateNodeType validates a node type tag received from user input.
// Type tags are short identifiers such as "file", "object" or "bundle".
func ValidateNodeType(typ string) error {
	if typ == "" {
		return New(ErrCodeInvalidInput, "node type cannot be empty")
	}
	for _, r := range typ {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return New(ErrCodeInvalidInput, "node type %q contains invalid characters", typ)
		}
	}
	return nil
}
