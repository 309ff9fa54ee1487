// Package sanitize provides identifier sanitization for vector collection
// names and path-safety checks for caller-supplied document paths.
//
// Collection names in chromem must match: ^[a-z0-9_]{1,64}$
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// MaxIdentifierLength is the maximum length for collection name components.
	// chromem requires collection names to be 1-64 characters.
	MaxIdentifierLength = 64

	// HashSuffixLength is the length of the hash suffix added to truncated identifiers.
	// Format: _<8-char-hash> = 9 characters total
	HashSuffixLength = 9

	// DefaultIdentifier is used when sanitization produces an empty result.
	DefaultIdentifier = "default"
)

// ErrUnsafePath is returned when a caller-supplied path would resolve
// outside the prompt library directory.
var ErrUnsafePath = errors.New("path escapes the prompt library")

// Identifier sanitizes a string for use in collection names.
//
// Rules applied:
//   - Converts to lowercase
//   - Replaces invalid characters with underscores
//   - Collapses multiple underscores
//   - Trims leading/trailing underscores
//   - Truncates to MaxIdentifierLength with hash suffix if too long
//   - Returns DefaultIdentifier if result would be empty
//
// Examples:
//
//	"lmstudio/nomic-embed-text" -> "lmstudio_nomic_embed_text"
//	"My Model!"                 -> "my_model"
//	"" or "!!!"                 -> "default"
func Identifier(s string) string {
	if s == "" {
		return DefaultIdentifier
	}

	s = strings.ToLower(s)

	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}

	sanitized := result.String()
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" {
		return DefaultIdentifier
	}

	if len(sanitized) > MaxIdentifierLength {
		sanitized = truncateWithHash(sanitized)
	}

	return sanitized
}

// truncateWithHash truncates a string to fit within MaxIdentifierLength,
// appending a hash suffix to preserve uniqueness.
//
// Format: <truncated>_<8-char-hash>
// Example: "very_long_identifier..." -> "very_long_iden_a1b2c3d4"
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	hashSuffix := "_" + hex.EncodeToString(hash[:])[:8]

	maxBase := MaxIdentifierLength - HashSuffixLength
	truncated := s[:maxBase]
	truncated = strings.TrimRight(truncated, "_")

	return truncated + hashSuffix
}

// DocumentPath resolves a caller-supplied relative path against the prompt
// library base directory and verifies the result stays inside it. Absolute
// paths, empty paths, and paths that traverse out of the base directory
// return ErrUnsafePath.
//
// The returned path is absolute and cleaned. The file is not required to
// exist; existence is the caller's concern.
func DocumentPath(baseDir, relPath string) (string, error) {
	if strings.TrimSpace(relPath) == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %q is absolute", ErrUnsafePath, relPath)
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base dir: %w", err)
	}

	// Join cleans the result, collapsing any ".." segments.
	joined := filepath.Join(base, relPath)
	if joined == base || !strings.HasPrefix(joined, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, relPath)
	}

	return joined, nil
}
