// Package resource loads template and stylesheet files referenced by
// components, coalescing concurrent loads of the same file.
package resource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
)

// ErrNotString is returned when a resource does not evaluate to a string.
var ErrNotString = errors.New("templateUrl and styleUrls need to be loaded as a string when using AoT compilation")

// Evaluator turns a resource file into its exported value. Anything but a
// string is rejected by the Loader.
type Evaluator interface {
	Evaluate(ctx context.Context, path string) (any, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, path string) (any, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, path string) (any, error) {
	return f(ctx, path)
}

// Loader loads resources through an Evaluator and remembers every extension
// it has been asked for.
type Loader struct {
	eval Evaluator
	log  logr.Logger

	group singleflight.Group

	mu   sync.RWMutex
	exts map[string]struct{}
}

// NewLoader returns a Loader evaluating through eval.
func NewLoader(eval Evaluator, log logr.Logger) *Loader {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Loader{eval: eval, log: log, exts: make(map[string]struct{})}
}

// Load evaluates the resource at path. Concurrent loads of one path share a
// single evaluation.
func (l *Loader) Load(ctx context.Context, path string) (string, error) {
	if ext := filepath.Ext(path); ext != "" {
		l.mu.Lock()
		l.exts[ext] = struct{}{}
		l.mu.Unlock()
	}

	v, err, shared := l.group.Do(path, func() (any, error) {
		return l.eval.Evaluate(ctx, path)
	})
	if err != nil {
		return "", fmt.Errorf("loading resource %s: %w", path, err)
	}
	if shared {
		l.log.V(2).Info("coalesced resource load", "path", path)
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w\nAsset %s exported '%T' (try loading it as raw text)", ErrNotString, path, v)
	}
	return s, nil
}

// IsResource reports whether request has an extension a resource has been
// loaded with.
func (l *Loader) IsResource(request string) bool {
	ext := filepath.Ext(request)
	if ext == "" {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.exts[ext]
	return ok
}

// Extensions returns the loaded extensions, sorted.
func (l *Loader) Extensions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	exts := make([]string, 0, len(l.exts))
	for ext := range l.exts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FileReader is the part of a host a RawEvaluator reads through.
type FileReader interface {
	ReadFile(path string) (string, error)
}

// RawEvaluator exports a resource file's text unchanged.
type RawEvaluator struct {
	Files FileReader
}

func (r RawEvaluator) Evaluate(_ context.Context, path string) (any, error) {
	return r.Files.ReadFile(path)
}
