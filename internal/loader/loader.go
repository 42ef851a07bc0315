// Package loader is the per-module hook a bundler calls for every unit it
// includes: it waits for the compile in flight, rewrites the unit to use
// generated factories and transpiles it.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/go-logr/logr"

	"github.com/phobologic/ngaot/internal/compiler"
	"github.com/phobologic/ngaot/internal/model"
	"github.com/phobologic/ngaot/internal/parse"
	"github.com/phobologic/ngaot/internal/sourcemap"
	"github.com/phobologic/ngaot/internal/transform"
)

var (
	generatedUnit = regexp.MustCompile(`\.(ngfactory|ngstyle)(\.|$)`)
	factoryUnit   = regexp.MustCompile(`\.ngfactory(\.|$)`)
	bootstrapCall = regexp.MustCompile(`(?i)bootstrapModule`)
	loadChildren  = regexp.MustCompile(`loadChildren`)
	resourceProp  = regexp.MustCompile(`templateUrl|styleUrls`)
)

var (
	dynamicPlatform = model.Import{Name: "platformBrowserDynamic", Module: "@angular/platform-browser-dynamic"}
	staticPlatform  = model.Import{Name: "platformBrowser", Module: "@angular/platform-browser"}
)

// Session is the part of the compiler the loader consults.
type Session interface {
	Wait(ctx context.Context, request string) error
	CachedUnit(path string) *parse.Unit
	Config() compiler.Config
	EmitPath(path string) string
	RegisterResourceUsage(owner string, resources []string)
}

// Output is one loaded module.
type Output struct {
	Code string
	Map  *sourcemap.Map
	// Dependencies lists the resource files the unit references.
	Dependencies []string
}

// Loader transforms units against a compile session.
type Loader struct {
	session Session
	opts    transform.Options
	log     logr.Logger
}

// New returns a loader transpiling with opts.
func New(session Session, opts transform.Options, log logr.Logger) *Loader {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Loader{session: session, opts: opts, log: log}
}

// Load transforms the unit at path whose current text is source. A failed
// compile pass yields empty output so the bundler reports the pass errors
// rather than stale code.
func (l *Loader) Load(ctx context.Context, path, source string) (*Output, error) {
	if err := l.session.Wait(ctx, path); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		l.log.V(1).Info("compile failed, emitting empty module", "path", path)
		return &Output{}, nil
	}

	opts := l.opts
	opts.ComposeSourceMap = !generatedUnit.MatchString(path)

	f, err := transform.New(path, source, l.session.CachedUnit(path), opts)
	if err != nil {
		return nil, err
	}

	if bootstrapCall.MatchString(source) {
		if err := l.redirectBootstrap(f); err != nil {
			return nil, fmt.Errorf("redirecting bootstrap in %s: %w", path, err)
		}
	}

	if factoryUnit.MatchString(path) && loadChildren.MatchString(source) {
		if err := f.ConvertLoadChildren(); err != nil {
			return nil, fmt.Errorf("converting lazy routes in %s: %w", path, err)
		}
	}

	var deps []string
	if resourceProp.MatchString(source) {
		dir := filepath.Dir(path)
		for _, r := range f.Resources() {
			deps = append(deps, filepath.Join(dir, filepath.FromSlash(r)))
		}
		l.session.RegisterResourceUsage(path, deps)
	}

	res, err := f.Transpile()
	if err != nil {
		return nil, err
	}
	l.log.V(2).Info("loaded unit", "path", path, "edited", res.Edited, "resources", len(deps))
	return &Output{Code: res.Code, Map: res.Map, Dependencies: deps}, nil
}

// redirectBootstrap points the bootstrap call at the entry module's factory,
// imported from its emit path relative to the unit.
func (l *Loader) redirectBootstrap(f *transform.File) error {
	cfg := l.session.Config()
	dir := filepath.Dir(f.Path)
	entry := filepath.Join(cfg.BasePath, filepath.FromSlash(cfg.Entry.Path))

	normalPath, err := relativeSpecifier(dir, entry)
	if err != nil {
		return err
	}
	factoryPath, err := relativeSpecifier(dir, l.session.EmitPath(entry))
	if err != nil {
		return err
	}

	if err := f.ConvertBootstrap(cfg.Entry.Name); err != nil {
		return err
	}
	if err := f.ConvertImport(dynamicPlatform, staticPlatform); err != nil {
		return err
	}
	return f.ConvertImport(
		model.Import{Name: cfg.Entry.Name, Module: normalPath},
		model.Import{Name: cfg.Entry.Name + "NgFactory", Module: factoryPath + ".ngfactory"},
	)
}

func relativeSpecifier(from, to string) (string, error) {
	rel, err := filepath.Rel(from, to)
	if err != nil {
		return "", err
	}
	return "./" + filepath.ToSlash(rel), nil
}
