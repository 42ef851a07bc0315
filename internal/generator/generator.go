// Package generator implements the semantic compiler the build delegates to.
// Symbols and module analysis are read structurally from the syntax tree;
// factory text comes from an external command when one is configured and
// from a built-in template otherwise.
package generator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/ngaot/internal/model"
	"github.com/phobologic/ngaot/internal/parse"
)

var decorators = map[string]model.Decorator{
	"NgModule":   model.NgModule,
	"Component":  model.Component,
	"Directive":  model.Directive,
	"Pipe":       model.Pipe,
	"Injectable": model.Injectable,
}

// FileReader is the part of the host the generator reads units through.
type FileReader interface {
	ReadFile(path string) (string, error)
}

// Structural is a generator backed by tree-sitter.
type Structural struct {
	files   FileReader
	command []string
	dir     string
	log     logr.Logger

	mu    sync.Mutex
	units map[string]*parse.Unit
}

// Options configures a Structural generator.
type Options struct {
	// Command produces factory text. When empty the built-in template is
	// used.
	Command []string
	// Dir is the working directory of Command.
	Dir string
	Log logr.Logger
}

// NewStructural returns a generator reading units from files.
func NewStructural(files FileReader, opts Options) *Structural {
	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Structural{
		files:   files,
		command: opts.Command,
		dir:     opts.Dir,
		log:     log,
		units:   make(map[string]*parse.Unit),
	}
}

func (s *Structural) InvalidateFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.units, path)
}

func (s *Structural) unit(path string) (*parse.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[path]; ok {
		return u, nil
	}
	text, err := s.files.ReadFile(path)
	if err != nil {
		return nil, err
	}
	u, err := parse.ParseUnit(path, []byte(text))
	if err != nil {
		return nil, err
	}
	s.units[path] = u
	return u, nil
}

// SymbolsOf returns the exported classes of path. A class containing a
// syntax error is returned marked erroneous.
func (s *Structural) SymbolsOf(_ context.Context, path string) ([]model.Symbol, error) {
	u, err := s.unit(path)
	if err != nil {
		return nil, fmt.Errorf("reading symbols of %s: %w", path, err)
	}

	var symbols []model.Symbol
	for _, class := range u.Classes() {
		parent := class.Parent()
		if parent == nil || parent.Type() != "export_statement" {
			continue
		}
		name := class.ChildByFieldName("name")
		if name == nil {
			continue
		}
		sym := model.Symbol{
			Name:      u.Text(name),
			FilePath:  path,
			Decorator: classDecorator(class, u.Source),
			Erroneous: parent.HasError(),
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

func classDecorator(class *sitter.Node, source []byte) model.Decorator {
	for _, d := range parse.ClassDecorators(class) {
		if kind, ok := decorators[parse.DecoratorName(d, source)]; ok {
			return kind
		}
	}
	return ""
}

// Analyze groups decorated symbols by file and maps every declared directive
// and pipe to its NgModule. Undecorated symbols are ignored.
func (s *Structural) Analyze(_ context.Context, symbols []model.Symbol) (*model.Analysis, error) {
	byFile := make(map[string]*model.AnalyzedUnit)
	analysis := &model.Analysis{ModuleOf: make(map[string]model.Symbol)}

	for _, sym := range symbols {
		if sym.Decorator == "" {
			continue
		}
		u, ok := byFile[sym.FilePath]
		if !ok {
			u = &model.AnalyzedUnit{SrcPath: sym.FilePath}
			byFile[sym.FilePath] = u
		}
		switch sym.Decorator {
		case model.NgModule:
			u.NgModules = append(u.NgModules, sym)
			declared, err := s.declarations(sym)
			if err != nil {
				return nil, err
			}
			for _, name := range declared {
				analysis.ModuleOf[name] = sym
			}
		case model.Component, model.Directive:
			u.Directives = append(u.Directives, sym)
		case model.Pipe:
			u.Pipes = append(u.Pipes, sym)
		case model.Injectable:
			u.Injectables = append(u.Injectables, sym)
		}
	}

	for _, u := range byFile {
		analysis.Units = append(analysis.Units, *u)
	}
	sort.Slice(analysis.Units, func(i, j int) bool {
		return analysis.Units[i].SrcPath < analysis.Units[j].SrcPath
	})
	return analysis, nil
}

// declarations returns the identifiers listed in the declarations array of
// module's @NgModule decorator.
func (s *Structural) declarations(module model.Symbol) ([]string, error) {
	u, err := s.unit(module.FilePath)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", module.Name, err)
	}

	var names []string
	for _, class := range u.Classes() {
		if n := class.ChildByFieldName("name"); n == nil || u.Text(n) != module.Name {
			continue
		}
		for _, d := range parse.ClassDecorators(class) {
			if parse.DecoratorName(d, u.Source) != string(model.NgModule) {
				continue
			}
			for _, pair := range parse.FindNodes(d, u.Source, parse.PropertyNamed("declarations"), false) {
				value := pair.ChildByFieldName("value")
				if value == nil || value.Type() != "array" {
					continue
				}
				for i := 0; i < int(value.NamedChildCount()); i++ {
					if el := value.NamedChild(i); el.Type() == "identifier" {
						names = append(names, u.Text(el))
					}
				}
			}
		}
	}
	return names, nil
}

// Generate produces the artifacts of one analyzed unit.
func (s *Structural) Generate(ctx context.Context, unit model.AnalyzedUnit, analysis *model.Analysis) ([]model.Artifact, error) {
	if len(s.command) > 0 {
		return s.external(ctx, unit, analysis)
	}
	return builtin(unit, analysis)
}
