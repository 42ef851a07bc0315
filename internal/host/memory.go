package host

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/phobologic/ngaot/internal/lang"
)

// Memory is a map-backed filesystem.
type Memory struct {
	mu      sync.RWMutex
	files   map[string]string
	writes  []string
	baseURL string
}

// NewMemory returns a filesystem holding files, keyed by absolute path.
func NewMemory(files map[string]string) *Memory {
	m := &Memory{files: make(map[string]string, len(files))}
	for p, text := range files {
		m.files[filepath.Clean(p)] = text
	}
	return m
}

// WithBaseURL sets the directory bare specifiers resolve against.
func (m *Memory) WithBaseURL(dir string) *Memory {
	m.baseURL = filepath.Clean(dir)
	return m
}

func (m *Memory) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

func (m *Memory) ReadFile(path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.files[filepath.Clean(path)]
	if !ok {
		return "", fmt.Errorf("reading %s: %w", path, fs.ErrNotExist)
	}
	return text, nil
}

func (m *Memory) WriteFile(path, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.files[path] = text
	m.writes = append(m.writes, path)
	return nil
}

// Remove deletes path.
func (m *Memory) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, filepath.Clean(path))
}

func (m *Memory) Resolve(specifier, from string) (string, bool) {
	return resolve(m.Exists, m.baseURL, specifier, from)
}

// ListInitialFiles returns every non-declaration TypeScript file, sorted.
func (m *Memory) ListInitialFiles() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var files []string
	for p := range m.files {
		if lang.IsSource(p) {
			files = append(files, p)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Writes returns the paths written so far, in order, and resets the log.
func (m *Memory) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.writes
	m.writes = nil
	return w
}
