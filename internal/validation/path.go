package validation

import (
	"path/filepath"
	"strings"
)

// WithinRoot reports whether path lies inside root or is root itself. Both
// must be absolute and already cleaned or symlink-resolved by the caller.
func WithinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
