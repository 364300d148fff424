// Package fileid derives deterministic session IDs for watched source files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const (
	prefix = "file-"
	// Hex characters of the path hash kept in the ID.
	hashLen = 24
)

// SessionID returns a stable session ID for the given absolute path.
// Same path always yields the same ID, so a file keeps its session across restarts.
func SessionID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])[:hashLen]
}

// IsFileSession reports whether id was produced by SessionID.
func IsFileSession(id string) bool {
	return strings.HasPrefix(id, prefix) && len(id) == len(prefix)+hashLen
}
