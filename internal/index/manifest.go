package index

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"lexa/internal/domain"
)

// Snapshot file names inside the index directory.
const (
	DataFile     = "index.db"
	ManifestFile = "manifest.yaml"

	formatVersion = 1
)

// ErrNoSnapshot reports that the index directory holds no snapshot yet.
var ErrNoSnapshot = errors.New("no index snapshot")

// Manifest describes a persisted snapshot. It is written beside the data
// file and checked before the snapshot is trusted.
type Manifest struct {
	Version     int       `yaml:"version"`
	Embedder    string    `yaml:"embedder"`
	Dimension   int       `yaml:"dimension"`
	Metric      string    `yaml:"metric"`
	Chunker     string    `yaml:"chunker"`
	Documents   int       `yaml:"documents"`
	Chunks      int       `yaml:"chunks"`
	Fingerprint string    `yaml:"fingerprint"`
	Checksum    string    `yaml:"checksum"`
	CreatedAt   time.Time `yaml:"created_at"`
}

func readManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, ErrNoSnapshot
		}
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: parse manifest: %v", domain.ErrIndexIntegrity, err)
	}
	return m, nil
}

func writeManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}

// Fingerprint identifies an ordered document set. Reordering documents
// changes it too, since order decides ties at search time.
func Fingerprint(docs []domain.LegalDocument) string {
	h := sha256.New()
	for _, d := range docs {
		for _, part := range []string{d.ID, d.Title, d.Body, d.Source} {
			_, _ = io.WriteString(h, part)
			_, _ = h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FileChecksum returns the hex SHA-256 of the file at path.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
