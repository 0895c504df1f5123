package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashContent fingerprints prompt content for the prompts registry.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
