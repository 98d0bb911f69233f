// Package pathutil converts between absolute paths and the project-relative,
// forward-slash paths used in method ids and user-facing output.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails, the path is already
// relative, or it lies outside root.
//
// Examples:
//   - ToRelative("/srv/shop/src/Order.php", "/srv/shop") → "src/Order.php"
//   - ToRelative("/other/Order.php", "/srv/shop") → "/other/Order.php"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}
	return relPath
}

// ToAbsolute joins a project-relative path onto rootDir. Absolute paths are
// only cleaned.
func ToAbsolute(path, rootDir string) string {
	if path == "" {
		return path
	}
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) || rootDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(rootDir, path)
}

// Key returns the forward-slash project-relative form of path, the form the
// index stores files under. Paths outside root keep their absolute form.
func Key(path, rootDir string) string {
	if filepath.IsAbs(path) {
		path = ToRelative(path, rootDir)
	}
	key := filepath.ToSlash(filepath.Clean(path))
	return strings.TrimPrefix(key, "./")
}
