package autogen

import (
	"crypto/sha256"
	"encoding/base64"
	"path/filepath"
	"strings"
)

const checksumLength = 12

// pathChecksum returns a short directory fragment derived from a file's
// full path. The path is relative-ized against the source or build tree
// first, so the fragment is stable across checkouts yet distinct for
// identically named files in different directories.
func (e *Env) pathChecksum(path string) string {
	seed := "Abs"
	rel := filepath.ToSlash(path)
	if r, ok := relativeTo(e.SourceDir, path); ok {
		seed, rel = "Src", r
	} else if r, ok := relativeTo(e.BinaryDir, path); ok {
		seed, rel = "Bin", r
	}

	sum := sha256.Sum256([]byte(seed + "/" + rel))
	enc := base64.RawURLEncoding.EncodeToString(sum[:])
	return enc[:checksumLength]
}

// relativeTo returns path relative to base when path is inside base.
func relativeTo(base, path string) (string, bool) {
	if base == "" {
		return "", false
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
