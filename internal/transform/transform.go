// Package transform rewrites a single TypeScript unit in place: bootstrap
// calls, imports, lazy route declarations and resource references, then
// lowers it to JavaScript with a source map pointing at the untouched text.
package transform

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/ngaot/internal/model"
	"github.com/phobologic/ngaot/internal/parse"
	"github.com/phobologic/ngaot/internal/textedit"
)

// File is one unit being transformed. All edits are expressed against the
// original text and parse tree; the edited text is only materialized when
// asked for.
type File struct {
	Path   string
	unit   *parse.Unit
	editor *textedit.Editor
	opts   Options
}

// New prepares path for transformation. A cached unit is reused when its text
// equals source; otherwise source is parsed.
func New(path, source string, cached *parse.Unit, opts Options) (*File, error) {
	unit := cached
	if unit == nil || string(unit.Source) != source {
		var err error
		unit, err = parse.ParseUnit(path, []byte(source))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return &File{
		Path:   path,
		unit:   unit,
		editor: textedit.New(source),
		opts:   opts.withDefaults(),
	}, nil
}

// Edited reports whether any rewrite touched the unit.
func (f *File) Edited() bool {
	return f.editor.Edited()
}

// Text returns the edited text.
func (f *File) Text() string {
	return f.editor.String()
}

// Unit returns the parse of the original text.
func (f *File) Unit() *parse.Unit {
	return f.unit
}

func (f *File) replaceNode(n *sitter.Node, text string) error {
	return f.editor.Overwrite(int(n.StartByte()), int(n.EndByte()), text)
}

// ConvertBootstrap rewrites platformBrowserDynamic().bootstrapModule(X) into
// platformBrowser().bootstrapModuleFactory(<module>NgFactory). Calls whose
// receiver chain does not contain a platformBrowserDynamic() call are left
// alone.
func (f *File) ConvertBootstrap(module string) error {
	src := f.unit.Source
	for _, call := range f.unit.Find(parse.CallNamed("bootstrapModule")) {
		callee := call.ChildByFieldName("function")
		if callee == nil || callee.Type() != "member_expression" {
			continue
		}

		var platforms []*sitter.Node
		object := callee.ChildByFieldName("object")
		if object == nil {
			continue
		}
		for _, p := range parse.FindNodes(object, src, parse.CallNamed("platformBrowserDynamic"), true) {
			if fn := p.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
				platforms = append(platforms, fn)
			}
		}
		if len(platforms) == 0 {
			continue
		}

		if err := f.replaceNode(callee.ChildByFieldName("property"), "bootstrapModuleFactory"); err != nil {
			return err
		}
		for _, fn := range platforms {
			if err := f.replaceNode(fn, "platformBrowser"); err != nil {
				return err
			}
		}
		if arg := firstArgument(call); arg != nil {
			if err := f.replaceNode(arg, module+"NgFactory"); err != nil {
				return err
			}
		}
	}
	return nil
}

func firstArgument(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if arg := args.NamedChild(i); arg.Type() != "comment" {
			return arg
		}
	}
	return nil
}

const loadChildrenTemplate = "loadChildren: () => import('%s.ngfactory').then((m) => m.%sNgFactory)"

// ConvertLoadChildren replaces every `loadChildren: 'path#Module'` property
// with a loader function importing the generated factory for that module.
func (f *File) ConvertLoadChildren() error {
	for _, pair := range f.unit.Find(parse.PropertyNamed("loadChildren")) {
		value, ok := parse.StringValue(pair.ChildByFieldName("value"), f.unit.Source)
		if !ok {
			continue
		}
		path, module, ok := strings.Cut(value, "#")
		if !ok || path == "" || module == "" {
			continue
		}
		if err := f.replaceNode(pair, fmt.Sprintf(loadChildrenTemplate, path, module)); err != nil {
			return err
		}
	}
	return nil
}

// Resources returns the templateUrl and styleUrls references of the unit,
// relative to it. Within each object literal the template comes first.
func (f *File) Resources() []string {
	src := f.unit.Source
	var resources []string
	for _, obj := range f.unit.Find(parse.NodeType("object")) {
		var templates, styles []string
		for i := 0; i < int(obj.NamedChildCount()); i++ {
			pair := obj.NamedChild(i)
			if pair.Type() != "pair" {
				continue
			}
			value := pair.ChildByFieldName("value")
			switch parse.PropertyKey(pair, src) {
			case "templateUrl":
				if s, ok := parse.StringValue(value, src); ok {
					templates = append(templates, normalizeResource(s))
				}
			case "styleUrls":
				if value == nil || value.Type() != "array" {
					continue
				}
				for j := 0; j < int(value.NamedChildCount()); j++ {
					if s, ok := parse.StringValue(value.NamedChild(j), src); ok {
						styles = append(styles, normalizeResource(s))
					}
				}
			}
		}
		resources = append(resources, templates...)
		resources = append(resources, styles...)
	}
	return resources
}

func normalizeResource(path string) string {
	if !strings.HasPrefix(path, ".") {
		path = "./" + path
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return path
}

// ConvertImport redirects the named binding from to the binding to. When the
// binding is the only one of its declaration the declaration is rewritten in
// place; otherwise the binding is dropped and to is added to an existing
// import of to.Module or to a new import after the last one. Running it
// again on its own output changes nothing.
func (f *File) ConvertImport(from, to model.Import) error {
	imports := f.imports()

	needsImport := true
	for _, dec := range imports {
		if dec.module != from.Module || !dec.named {
			continue
		}
		idx := dec.indexOf(from.Name, f.unit.Source)
		if idx < 0 {
			continue
		}
		if len(dec.specifiers) > 1 {
			start, end := removalRange(dec.specifiers, idx)
			if err := f.editor.Remove(start, end); err != nil {
				return err
			}
			continue
		}
		if err := f.replaceNode(dec.source, quote(to.Module)); err != nil {
			return err
		}
		if err := f.replaceNode(dec.specifiers[0].ChildByFieldName("name"), to.Name); err != nil {
			return err
		}
		needsImport = false
		break
	}
	if !needsImport {
		return nil
	}

	var target *importDecl
	for i := range imports {
		dec := &imports[i]
		if dec.module != to.Module || !dec.named {
			continue
		}
		if dec.indexOf(to.Name, f.unit.Source) >= 0 {
			return nil
		}
		if target == nil {
			target = dec
		}
	}

	switch {
	case target != nil && len(target.specifiers) > 0:
		last := target.specifiers[len(target.specifiers)-1]
		return f.editor.Insert(int(last.EndByte()), ", "+to.Name)
	case target != nil:
		return f.editor.Insert(int(target.namedImports.EndByte())-1, to.Name)
	case len(imports) > 0:
		last := imports[len(imports)-1].node
		return f.editor.Insert(int(last.EndByte()), fmt.Sprintf("\nimport { %s } from %s;", to.Name, quote(to.Module)))
	default:
		return f.editor.Insert(0, fmt.Sprintf("import { %s } from %s;\n", to.Name, quote(to.Module)))
	}
}

func quote(module string) string {
	return "'" + module + "'"
}

// removalRange covers the binding at idx together with one separating comma.
func removalRange(specifiers []*sitter.Node, idx int) (int, int) {
	if idx > 0 {
		return int(specifiers[idx-1].EndByte()), int(specifiers[idx].EndByte())
	}
	return int(specifiers[0].StartByte()), int(specifiers[1].StartByte())
}

type importDecl struct {
	node         *sitter.Node
	source       *sitter.Node
	module       string
	namedImports *sitter.Node
	specifiers   []*sitter.Node
	named        bool
}

func (d *importDecl) indexOf(name string, src []byte) int {
	for i, s := range d.specifiers {
		if n := s.ChildByFieldName("name"); n != nil && string(src[n.StartByte():n.EndByte()]) == name {
			return i
		}
	}
	return -1
}

func (f *File) imports() []importDecl {
	src := f.unit.Source
	var decls []importDecl
	for _, n := range parse.FindNodes(f.unit.Root(), src, parse.NodeType("import_statement"), false) {
		source := n.ChildByFieldName("source")
		module, ok := parse.StringValue(source, src)
		if !ok {
			continue
		}
		dec := importDecl{node: n, source: source, module: module}
		for _, clause := range parse.FindNodes(n, src, parse.NodeType("named_imports"), false) {
			dec.named = true
			dec.namedImports = clause
			for i := 0; i < int(clause.NamedChildCount()); i++ {
				if s := clause.NamedChild(i); s.Type() == "import_specifier" {
					dec.specifiers = append(dec.specifiers, s)
				}
			}
		}
		decls = append(decls, dec)
	}
	return decls
}
