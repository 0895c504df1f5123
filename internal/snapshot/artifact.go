package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ArtifactStore persists raw page bytes when raw retention is enabled.
// Put returns an opaque reference usable for later retrieval.
type ArtifactStore interface {
	Put(sha string, content []byte) (ref string, err error)
	Get(ref string) ([]byte, error)
}

// LocalStore keeps artifacts as content-addressed files under a root
// directory. The reference is the file path relative to the root.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrap(err, "snapshot: create artifact dir")
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Put(sha string, content []byte) (string, error) {
	name := sha + ".html"
	if err := os.WriteFile(filepath.Join(s.root, name), content, 0o644); err != nil {
		return "", eris.Wrap(err, "snapshot: write artifact")
	}
	return name, nil
}

func (s *LocalStore) Get(ref string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, ref))
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: read artifact")
	}
	return data, nil
}

// contentSHA256 fingerprints raw page bytes. Recorded on every snapshot
// even when the bytes themselves are not retained.
func contentSHA256(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
