// Package security validates filesystem paths supplied by API clients.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory checks that filePath stays inside safeDir
// after cleaning and symlink resolution, rejecting traversal via .. or
// symlinked parents. Used for client-supplied scan log paths.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory: %w", err)
	}

	// Resolve symlinks where the path (or its nearest existing ancestor)
	// exists, so a symlink inside safeDir cannot point the lookup outside
	// it.
	canonicalPath := resolveExisting(absPath)
	canonicalSafeDir := resolveExisting(absSafeDir)

	rel, err := filepath.Rel(canonicalSafeDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("failed to relate path to safe directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes directory %q", filePath, safeDir)
	}
	return nil
}

// resolveExisting resolves symlinks on the longest existing prefix of path
// and rejoins the non-existing remainder.
func resolveExisting(path string) string {
	remainder := ""
	for p := path; ; {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(resolved, remainder)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path
		}
		remainder = filepath.Join(filepath.Base(p), remainder)
		p = parent
	}
}
