// Package compiler drives incremental ahead-of-time compilation: it decides
// which units a change affects, asks the generator for their factories,
// writes them out and recompiles the units depending on them.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/phobologic/ngaot/internal/graph"
	"github.com/phobologic/ngaot/internal/model"
	"github.com/phobologic/ngaot/internal/parse"
)

const defaultCacheSize = 4096

// Host is the filesystem capability the compiler reads units from and writes
// artifacts through.
type Host interface {
	Exists(path string) bool
	ReadFile(path string) (string, error)
	WriteFile(path, text string) error
	Resolve(specifier, from string) (string, bool)
	ListInitialFiles() ([]string, error)
}

// Generator is the semantic compiler: it resolves symbols, analyzes the
// module graph and produces artifact text.
type Generator interface {
	// InvalidateFile drops everything cached for path.
	InvalidateFile(path string)
	SymbolsOf(ctx context.Context, path string) ([]model.Symbol, error)
	Analyze(ctx context.Context, symbols []model.Symbol) (*model.Analysis, error)
	Generate(ctx context.Context, unit model.AnalyzedUnit, analysis *model.Analysis) ([]model.Artifact, error)
}

// EntryModule designates the root NgModule: Path is relative to the base
// path and carries no extension.
type EntryModule struct {
	Path string
	Name string
}

// Config is the static project configuration.
type Config struct {
	BasePath string
	GenDir   string
	RootDirs []string
	Entry    EntryModule
}

// Options tunes a Compiler.
type Options struct {
	Log logr.Logger
	// CacheSize bounds the number of parsed units kept. Zero means 4096.
	CacheSize int
	// ResourceRequest reports whether a request is for a resource file; such
	// requests do not wait for the compile in flight.
	ResourceRequest func(request string) bool
}

// Result is the outcome of one compile pass.
type Result struct {
	Errors  []error
	Written []string
}

// Err joins the pass errors, or returns nil for a clean pass.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Compiler owns one compile session. Separate projects get separate
// compilers.
type Compiler struct {
	cfg   Config
	host  Host
	gen   Generator
	log   logr.Logger
	isRes func(string) bool

	// mu serializes passes and guards the session.
	mu             sync.Mutex
	files          []string
	symbols        []model.Symbol
	firstBuildDone bool
	units          *lru.Cache[string, *parse.Unit]
	tracker        *graph.Tracker

	flightMu sync.Mutex
	current  *flight
}

// New returns a compiler for cfg.
func New(cfg Config, host Host, gen Generator, opts Options) (*Compiler, error) {
	if cfg.BasePath == "" {
		return nil, configErrorf("basePath", "must be set")
	}
	if cfg.GenDir == "" {
		return nil, configErrorf("genDir", "must be set")
	}
	if cfg.Entry.Path == "" || cfg.Entry.Name == "" {
		return nil, configErrorf("entryModule", "must be set as path#Name")
	}
	if host == nil || gen == nil {
		return nil, configErrorf("host", "host and generator are required")
	}

	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	units, err := lru.New[string, *parse.Unit](size)
	if err != nil {
		return nil, &ConfigError{Field: "cacheSize", Err: err}
	}

	isRes := opts.ResourceRequest
	if isRes == nil {
		isRes = func(string) bool { return false }
	}
	cfg.BasePath = filepath.Clean(cfg.BasePath)
	cfg.GenDir = filepath.Clean(cfg.GenDir)

	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &Compiler{
		cfg:     cfg,
		host:    host,
		gen:     gen,
		log:     log,
		isRes:   isRes,
		units:   units,
		tracker: graph.New(host.Exists),
	}, nil
}

// Config returns the configuration the compiler was built with.
func (c *Compiler) Config() Config {
	return c.cfg
}

// Tracker exposes the dependency graph for reporting.
func (c *Compiler) Tracker() *graph.Tracker {
	return c.tracker
}

// CachedUnit returns the parse cached for path, if any.
func (c *Compiler) CachedUnit(path string) *parse.Unit {
	u, _ := c.units.Get(path)
	return u
}

// RegisterResourceUsage records the resource files owner references, so a
// change to one of them recompiles owner.
func (c *Compiler) RegisterResourceUsage(owner string, resources []string) {
	c.tracker.RecordResourceUsage(owner, resources)
}

// Files returns the units known to the session.
func (c *Compiler) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.files...)
}

// Compile runs one pass over changed. Before the first successful pass every
// initial file is compiled. Errors are collected in the result, never
// returned past it.
func (c *Compiler) Compile(ctx context.Context, changed []string) (res Result) {
	f := newFlight()
	c.flightMu.Lock()
	c.current = f
	c.flightMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(nil, "compile pass panicked", "panic", r)
			res = Result{Errors: []error{fmt.Errorf("compile pass: panic: %v", r)}}
		}
		f.finish(res.Err())
	}()

	return c.runPass(ctx, changed)
}

// Wait blocks until the pass in flight when it was called has finished and
// returns that pass's error. Requests for resource files return at once.
func (c *Compiler) Wait(ctx context.Context, request string) error {
	if c.isRes(request) {
		return nil
	}
	c.flightMu.Lock()
	f := c.current
	c.flightMu.Unlock()
	if f == nil {
		return nil
	}
	return f.wait(ctx)
}

type flight struct {
	done chan struct{}
	err  error
}

func newFlight() *flight {
	return &flight{done: make(chan struct{})}
}

func (f *flight) finish(err error) {
	f.err = err
	close(f.done)
}

func (f *flight) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
