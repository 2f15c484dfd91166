// Package fileid derives stable identifiers for intake files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	pathPrefix    = "path:"
	contentPrefix = "sha256:"
)

// PathID returns a stable key for path. Equivalent spellings of the same
// cleaned path map to the same key.
func PathID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return pathPrefix + hex.EncodeToString(sum[:])
}

// ContentID returns the digest of content, used to skip re-ingesting a file
// whose bytes did not change.
func ContentID(content []byte) string {
	sum := sha256.Sum256(content)
	return contentPrefix + hex.EncodeToString(sum[:])
}
