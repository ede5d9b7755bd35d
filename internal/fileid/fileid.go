// Package fileid provides deterministic record IDs for rows imported from files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"
)

const prefix = "file:"

// SourceID returns a stable ID for the given absolute path.
// Same path always yields the same ID.
func SourceID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:12])
}

// RecordID returns the ID of the row at index (0-based) imported from path.
// Re-importing the same file yields the same IDs, so rows update in place.
func RecordID(absolutePath string, index int) string {
	return SourceID(absolutePath) + "#" + strconv.Itoa(index)
}

// IsFileRecord reports whether id was produced by RecordID.
func IsFileRecord(id string) bool {
	return strings.HasPrefix(id, prefix) && strings.Contains(id, "#")
}
