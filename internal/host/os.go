package host

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// OS is a disk-backed filesystem. Written files are kept in an overlay so
// reads of generated output do not hit the disk; a file deleted on disk is
// dropped from the overlay the next time its existence is checked.
type OS struct {
	files   []string
	baseURL string

	mu      sync.RWMutex
	overlay map[string]string
}

// NewOS returns a disk filesystem whose initial unit list is files. Bare
// specifiers resolve against baseURL when it is set.
func NewOS(files []string, baseURL string) *OS {
	if baseURL != "" {
		baseURL = filepath.Clean(baseURL)
	}
	return &OS{files: files, baseURL: baseURL, overlay: make(map[string]string)}
}

func (o *OS) Exists(path string) bool {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		o.mu.Lock()
		delete(o.overlay, path)
		o.mu.Unlock()
		return false
	}
	return true
}

func (o *OS) ReadFile(path string) (string, error) {
	path = filepath.Clean(path)
	o.mu.RLock()
	text, ok := o.overlay[path]
	o.mu.RUnlock()
	if ok {
		return text, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (o *OS) WriteFile(path, text string) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	o.mu.Lock()
	o.overlay[path] = text
	o.mu.Unlock()
	return nil
}

func (o *OS) Resolve(specifier, from string) (string, bool) {
	return resolve(o.Exists, o.baseURL, specifier, from)
}

func (o *OS) ListInitialFiles() ([]string, error) {
	return append([]string(nil), o.files...), nil
}
