package compiler

import (
	"path/filepath"
	"strings"
)

const parentDir = ".." + string(filepath.Separator)

// EmitPath re-roots path under the generation directory. The root is the
// longest configured root dir containing path, else the base path; whatever
// still climbs out of the root is clamped so nothing lands outside GenDir.
func (c *Compiler) EmitPath(path string) string {
	root := c.cfg.BasePath
	longest := -1
	for _, dir := range c.cfg.RootDirs {
		if !within(dir, path) {
			continue
		}
		if len(dir) > longest {
			root, longest = dir, len(dir)
		}
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	for strings.HasPrefix(rel, parentDir) {
		rel = rel[len(parentDir):]
	}
	if rel == ".." {
		rel = "."
	}
	return filepath.Join(c.cfg.GenDir, rel)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, parentDir)
}
