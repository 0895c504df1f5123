package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Version derives the stable agent-version string from the model name and
// the hashes of every prompt and schema in play. Pure function: identical
// configuration always yields the identical version, so runs can be
// grouped by effective agent configuration later.
func Version(modelName string, promptHashes, schemaHashes []string) string {
	prompts := append([]string(nil), promptHashes...)
	schemas := append([]string(nil), schemaHashes...)
	sort.Strings(prompts)
	sort.Strings(schemas)

	payload, _ := json.Marshal(map[string]any{
		"model":   modelName,
		"prompts": prompts,
		"schemas": schemas,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// hashString fingerprints prompt and schema content for versioning and
// audit rows.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
