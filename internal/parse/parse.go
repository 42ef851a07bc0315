// Package parse builds tree-sitter syntax trees for TypeScript units and
// answers the structural questions the compiler asks of them.
package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/ngaot/internal/lang"
)

// Unit is one parsed source file. The tree is built once and shared by
// every reader of the same text.
type Unit struct {
	Path   string
	Source []byte
	Tree   *sitter.Tree
	Lang   *lang.Language
}

// ParseUnit parses source as the language implied by path.
func ParseUnit(path string, source []byte) (*Unit, error) {
	l := lang.ForPath(path)
	tree, err := l.Parse(source)
	if err != nil {
		return nil, err
	}
	return &Unit{Path: path, Source: source, Tree: tree, Lang: l}, nil
}

// Root returns the program node.
func (u *Unit) Root() *sitter.Node {
	return u.Tree.RootNode()
}

// Text returns the source text covered by n.
func (u *Unit) Text(n *sitter.Node) string {
	return lang.NodeText(n, u.Source)
}

// LocalImports returns the specifiers of import and re-export statements that
// start with ".", in source order.
func (u *Unit) LocalImports() ([]string, error) {
	specs, err := u.ImportSpecifiers()
	if err != nil {
		return nil, err
	}
	var local []string
	for _, s := range specs {
		if strings.HasPrefix(s, ".") {
			local = append(local, s)
		}
	}
	return local, nil
}

// ImportSpecifiers returns every module specifier named by an import or
// re-export statement, in source order.
func (u *Unit) ImportSpecifiers() ([]string, error) {
	query, err := u.Lang.GetImportQuery()
	if err != nil {
		return nil, err
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, u.Root())

	var specs []string
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			if query.CaptureNameForId(c.Index) != "source" {
				continue
			}
			if s, ok := StringValue(c.Node, u.Source); ok {
				specs = append(specs, s)
			}
		}
	}
	return specs, nil
}

// HasDecorator reports whether any class in the unit carries the named decorator.
func (u *Unit) HasDecorator(name string) bool {
	for _, d := range u.Find(NodeType("decorator")) {
		if DecoratorName(d, u.Source) == name {
			return true
		}
	}
	return false
}

// Classes returns every class declaration, in source order.
func (u *Unit) Classes() []*sitter.Node {
	return u.Find(classDeclaration)
}

// ClassNames returns the names of all declared classes.
func (u *Unit) ClassNames() []string {
	var names []string
	for _, c := range u.Classes() {
		if n := c.ChildByFieldName("name"); n != nil {
			names = append(names, u.Text(n))
		}
	}
	return names
}

// PropertyAssignments returns every `key: value` pair found in any object
// literal of the unit, in source order.
func (u *Unit) PropertyAssignments() []*sitter.Node {
	return u.Find(NodeType("pair"))
}

// LoadChildren returns the string values of every loadChildren property.
func (u *Unit) LoadChildren() []string {
	var values []string
	for _, pair := range u.Find(PropertyNamed("loadChildren")) {
		if v, ok := StringValue(pair.ChildByFieldName("value"), u.Source); ok {
			values = append(values, v)
		}
	}
	return values
}

// DecoratorName returns the callee name of a decorator node: "Component" for
// both @Component and @Component({...}), and the property name for member
// forms like @core.Component().
func DecoratorName(decorator *sitter.Node, source []byte) string {
	if decorator.NamedChildCount() == 0 {
		return ""
	}
	child := decorator.NamedChild(0)
	if child.Type() == "call_expression" {
		child = child.ChildByFieldName("function")
	}
	return calleeName(child, source)
}

// ClassDecorators returns the decorator nodes attached to a class
// declaration, including the ones written before an enclosing export.
func ClassDecorators(class *sitter.Node) []*sitter.Node {
	var decorators []*sitter.Node
	collect := func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child.Type() == "decorator" {
				decorators = append(decorators, child)
			}
		}
	}
	if parent := class.Parent(); parent != nil && parent.Type() == "export_statement" {
		collect(parent)
	}
	collect(class)
	return decorators
}

// StringValue returns the unquoted text of a string literal node.
func StringValue(n *sitter.Node, source []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "string":
	case "template_string":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if n.NamedChild(i).Type() == "template_substitution" {
				return "", false
			}
		}
	default:
		return "", false
	}
	text := lang.NodeText(n, source)
	if len(text) < 2 {
		return "", false
	}
	return text[1 : len(text)-1], true
}

func calleeName(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier", "property_identifier", "type_identifier":
		return lang.NodeText(n, source)
	case "member_expression":
		return calleeName(n.ChildByFieldName("property"), source)
	}
	return ""
}
