package watcher

import (
	"os"
	"path/filepath"
	"strings"
)

func isHidden(base string) bool {
	return strings.HasPrefix(base, ".")
}

// IgnoreFilter drops dotfiles and editor swap or backup files.
func IgnoreFilter(path string) bool {
	base := filepath.Base(path)
	return !isHidden(base) &&
		!strings.HasSuffix(base, "~") &&
		!strings.HasSuffix(base, ".swp") &&
		!strings.HasSuffix(base, ".swx")
}

// PatternFilter accepts files whose base name matches one of patterns.
// Paths that are directories or no longer exist are always accepted, since a
// removed directory may have held matching files.
func PatternFilter(patterns ...string) FileFilter {
	return func(path string) bool {
		if len(patterns) == 0 {
			return true
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return true
		}
		base := filepath.Base(path)
		for _, pattern := range patterns {
			if ok, err := filepath.Match(pattern, base); err == nil && ok {
				return true
			}
		}
		return false
	}
}
