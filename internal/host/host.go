// Package host provides the filesystem capability the compiler runs against:
// a disk-backed implementation with an overlay of written artifacts, and a
// map-backed one for tests and embedding.
package host

import (
	"path"
	"path/filepath"
	"strings"
)

// resolveExtensions are tried, in order, after the bare specifier.
var resolveExtensions = []string{".ts", ".tsx", ".d.ts", "/index.ts"}

// resolve maps a specifier imported from `from` to an existing file,
// TypeScript style. Relative specifiers resolve against the importing file,
// bare ones against baseURL. Without a baseURL bare specifiers are not
// resolved.
func resolve(exists func(string) bool, baseURL, specifier, from string) (string, bool) {
	var base string
	switch {
	case strings.HasPrefix(specifier, "."):
		base = filepath.Join(filepath.Dir(from), filepath.FromSlash(specifier))
	case filepath.IsAbs(specifier):
		base = filepath.Clean(specifier)
	case baseURL != "":
		base = filepath.Join(baseURL, filepath.FromSlash(specifier))
	default:
		return "", false
	}

	if path.Ext(specifier) != "" && exists(base) {
		return base, true
	}
	for _, ext := range resolveExtensions {
		if candidate := base + filepath.FromSlash(ext); exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}
