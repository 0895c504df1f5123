package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// digestVersion tags the digest layout so stored hashes stay comparable
// across releases.
const digestVersion = "v1"

// digestObject builds the stable digest sub-object that gets hashed and
// embedded in the extracted payload.
func digestObject(id Identity, signals []string) map[string]any {
	if signals == nil {
		signals = []string{}
	}
	return map[string]any{
		"digest_version":   digestVersion,
		"product_identity": identityMap(id),
		"source_signals":   signals,
	}
}

// canonicalHash hashes the canonical JSON serialization of the digest.
// encoding/json sorts map keys and emits no insignificant whitespace, so
// equal digests always produce equal hashes.
func canonicalHash(digest map[string]any) string {
	serialized, err := json.Marshal(digest)
	if err != nil {
		// Digest values are plain strings and string slices; marshaling
		// cannot fail for them.
		return ""
	}
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}
