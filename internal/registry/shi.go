package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SourceHash computes the Source Hash Identity of a document version:
// hex SHA-256 of "lower(uri)|lower(version)" with surrounding space trimmed.
func SourceHash(uri, version string) string {
	key := strings.ToLower(strings.TrimSpace(uri)) + "|" + strings.ToLower(strings.TrimSpace(version))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
