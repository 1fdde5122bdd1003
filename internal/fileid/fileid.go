// Package fileid derives stable document ids from document content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
)

const prefix = "doc:"

// ContentID returns a stable document ID for the given bytes. Identical uploads get the same
// ID regardless of filename, which lets ingestion skip documents it has already indexed.
func ContentID(content []byte) string {
	hash := sha256.Sum256(content)
	return prefix + hex.EncodeToString(hash[:])
}

// Short returns the first 12 hex characters of an ID produced by ContentID, for logs.
func Short(id string) string {
	if len(id) <= len(prefix)+12 {
		return id
	}
	return id[:len(prefix)+12]
}
