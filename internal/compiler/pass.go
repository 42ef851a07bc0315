package compiler

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/phobologic/ngaot/internal/lang"
	"github.com/phobologic/ngaot/internal/model"
	"github.com/phobologic/ngaot/internal/parse"
)

var (
	summaryFile   = regexp.MustCompile(`ngsummary\.json$`)
	injectorClass = regexp.MustCompile(`\w+?Injector`)
)

// tier is the cascade level a batch runs at. Module dependents cascade
// further; component dependents get a single refresh.
type tier int

const (
	moduleTier tier = iota
	componentTier
)

type job struct {
	files []string
	tier  tier
	// cascade jobs never revisit the files the pass started from
	cascade bool
}

type visit struct {
	file string
	tier tier
}

func (c *Compiler) runPass(ctx context.Context, changed []string) Result {
	var files []string
	if c.firstBuildDone {
		files = c.resolveChanges(changed)
	} else {
		initial, err := c.host.ListInitialFiles()
		if err != nil {
			return Result{Errors: []error{fmt.Errorf("listing initial files: %w", err)}}
		}
		files = dedupe(append(initial, c.resolveChanges(changed)...))
	}
	if len(files) == 0 {
		c.log.V(1).Info("nothing to compile")
		return Result{}
	}

	c.log.V(1).Info("compile pass started", "files", len(files), "first", !c.firstBuildDone)

	if err := c.scan(files); err != nil {
		return Result{Errors: []error{err}}
	}

	var res Result
	initial := make(map[string]bool, len(files))
	for _, f := range files {
		initial[f] = true
	}
	visited := make(map[visit]bool)
	queue := []job{{files: files, tier: moduleTier}}

	for len(queue) > 0 && len(res.Errors) == 0 {
		j := queue[0]
		queue = queue[1:]

		var batch []string
		for _, f := range j.files {
			v := visit{f, j.tier}
			if visited[v] {
				continue
			}
			if j.cascade && initial[f] {
				continue
			}
			visited[v] = true
			batch = append(batch, f)
		}
		if len(batch) == 0 {
			continue
		}

		next, written, errs := c.compileBatch(ctx, batch, j.tier)
		res.Written = append(res.Written, written...)
		res.Errors = append(res.Errors, errs...)
		queue = append(queue, next...)
	}

	if len(res.Errors) == 0 {
		c.firstBuildDone = true
	}
	c.log.V(1).Info("compile pass finished", "written", len(res.Written), "errors", len(res.Errors))
	return res
}

// resolveChanges maps resource changes to the units referencing them and
// deleted units to their importers.
func (c *Compiler) resolveChanges(changed []string) []string {
	var files []string
	for _, f := range changed {
		switch {
		case c.tracker.IsResource(f):
			files = append(files, c.tracker.ResourceOwners(f)...)
		case !c.host.Exists(f):
			files = append(files, c.tracker.DependentsOf(f)...)
		default:
			files = append(files, f)
		}
	}
	return dedupe(files)
}

// scan parses every unit of the pass and records the module dependencies of
// NgModules, following lazy routes into the modules they load.
func (c *Compiler) scan(files []string) error {
	seen := make(map[string]bool)
	queue := append([]string(nil), files...)

	for len(queue) > 0 {
		file := queue[0]
		queue = queue[1:]
		if seen[file] {
			continue
		}
		seen[file] = true
		if !lang.IsSource(file) || !c.host.Exists(file) {
			continue
		}

		unit, err := c.parseFile(file)
		if err != nil {
			return err
		}
		if !unit.HasDecorator(string(model.NgModule)) {
			continue
		}

		locals, err := unit.LocalImports()
		if err != nil {
			return fmt.Errorf("reading imports of %s: %w", file, err)
		}
		for _, spec := range locals {
			dep, ok := c.host.Resolve(spec, file)
			if !ok {
				return &ResolutionError{File: file, Specifier: spec}
			}
			c.tracker.RecordModuleDependency(file, dep)
		}

		for _, route := range unit.LoadChildren() {
			spec, _, _ := strings.Cut(route, "#")
			dep, ok := c.host.Resolve(spec, file)
			if !ok {
				if strings.HasPrefix(spec, ".") {
					return &ResolutionError{File: file, Specifier: spec}
				}
				// Bare routes outside baseUrl belong to packages.
				c.log.V(1).Info("unresolved lazy route", "from", file, "route", spec)
				continue
			}
			if c.tracker.RecordLazyDependency(file, dep) {
				c.log.V(2).Info("lazy route", "from", file, "to", dep)
			}
			queue = append(queue, dep)
		}
	}
	return nil
}

func (c *Compiler) parseFile(file string) (*parse.Unit, error) {
	text, err := c.host.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	if cached, ok := c.units.Get(file); ok && string(cached.Source) == text {
		return cached, nil
	}
	unit, err := parse.ParseUnit(file, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	c.units.Add(file, unit)
	return unit, nil
}

// compileBatch regenerates the factories of files and writes them. It
// returns the cascades the new artifacts call for.
func (c *Compiler) compileBatch(ctx context.Context, files []string, t tier) ([]job, []string, []error) {
	c.files = c.pruneDeleted(dedupe(append(c.files, files...)))
	c.symbols = slices.DeleteFunc(c.symbols, func(s model.Symbol) bool {
		return !c.host.Exists(s.FilePath)
	})

	for _, f := range files {
		c.gen.InvalidateFile(f)
	}

	for _, f := range files {
		if !lang.IsSource(f) || !c.host.Exists(f) {
			continue
		}
		symbols, err := c.gen.SymbolsOf(ctx, f)
		if err != nil {
			return nil, nil, []error{fmt.Errorf("resolving symbols of %s: %w", f, err)}
		}
		c.symbols = slices.DeleteFunc(c.symbols, func(s model.Symbol) bool { return s.FilePath == f })
		for _, s := range symbols {
			if s.Erroneous {
				c.log.V(2).Info("dropping erroneous symbol", "symbol", s.Name, "file", f)
				continue
			}
			c.symbols = append(c.symbols, s)
		}
	}

	analysis, err := c.gen.Analyze(ctx, c.symbols)
	if err != nil {
		return nil, nil, []error{fmt.Errorf("analyzing modules: %w", err)}
	}

	units := analysis.Units
	if c.firstBuildDone {
		units = slices.DeleteFunc(slices.Clone(units), func(u model.AnalyzedUnit) bool {
			return !slices.Contains(files, u.SrcPath)
		})
	}

	var (
		errs      []error
		generated []model.Artifact
	)
	for _, u := range units {
		artifacts, err := c.generate(ctx, u, analysis)
		if err != nil {
			errs = append(errs, &GenerationError{File: u.SrcPath, Err: err})
			break
		}
		generated = append(generated, artifacts...)
	}

	var (
		next    []job
		written []string
	)
	for _, a := range generated {
		placed, ok, err := c.place(a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}

		if c.firstBuildDone && t == moduleTier {
			factory := strings.TrimSuffix(placed.EmitPath, ".ts")
			if deps := c.tracker.ComponentDependents(factory); len(deps) > 0 {
				c.log.V(1).Info("cascading to component dependents", "factory", factory, "units", deps)
				next = append(next, job{files: deps, tier: componentTier, cascade: true})
			}
			if deps := c.tracker.ModuleDependencies(placed.SrcPath); len(deps) > 0 {
				c.log.V(1).Info("cascading to module dependencies", "unit", placed.SrcPath, "units", deps)
				next = append(next, job{files: deps, tier: moduleTier, cascade: true})
			}
		}

		if err := c.host.WriteFile(placed.EmitPath, placed.Source); err != nil {
			errs = append(errs, fmt.Errorf("writing %s: %w", placed.EmitPath, err))
			continue
		}
		c.log.V(2).Info("wrote artifact", "path", placed.EmitPath, "kind", placed.Kind)
		written = append(written, placed.EmitPath)
	}
	return next, written, errs
}

// generate runs the generator for one unit, turning a panic into an error.
func (c *Compiler) generate(ctx context.Context, u model.AnalyzedUnit, analysis *model.Analysis) (artifacts []model.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	return c.gen.Generate(ctx, u, analysis)
}

// place computes the emit path of a, caches its parse and classifies it.
// Summary artifacts are skipped.
func (c *Compiler) place(a model.Artifact) (model.PlacedArtifact, bool, error) {
	emitPath := c.EmitPath(a.GenPath)
	if summaryFile.MatchString(emitPath) {
		return model.PlacedArtifact{}, false, nil
	}

	unit, err := parse.ParseUnit(emitPath, []byte(a.Source))
	if err != nil {
		return model.PlacedArtifact{}, false, fmt.Errorf("parsing %s: %w", emitPath, err)
	}
	c.units.Add(emitPath, unit)

	placed := model.PlacedArtifact{Artifact: a, EmitPath: emitPath, Kind: model.ComponentFactory}
	if slices.ContainsFunc(unit.ClassNames(), injectorClass.MatchString) {
		placed.Kind = model.ModuleFactory
		return placed, true, nil
	}

	locals, err := unit.LocalImports()
	if err != nil {
		return model.PlacedArtifact{}, false, fmt.Errorf("reading imports of %s: %w", emitPath, err)
	}
	for _, spec := range locals {
		if !strings.HasSuffix(spec, "ngfactory") {
			continue
		}
		factory := filepath.Join(filepath.Dir(emitPath), filepath.FromSlash(spec))
		c.tracker.RecordComponentDependency(factory, a.SrcPath)
	}
	return placed, true, nil
}

func (c *Compiler) pruneDeleted(files []string) []string {
	return slices.DeleteFunc(files, func(f string) bool { return !c.host.Exists(f) })
}

func dedupe(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := files[:0:0]
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
