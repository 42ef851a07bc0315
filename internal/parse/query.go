package parse

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Predicate selects syntax nodes by shape. Matching is textual: node types
// and identifier names are compared, no type information is consulted.
type Predicate interface {
	Match(n *sitter.Node, source []byte) bool
}

// NodeType matches nodes of one grammar type.
type NodeType string

func (t NodeType) Match(n *sitter.Node, _ []byte) bool {
	return n.Type() == string(t)
}

// AnyType matches nodes of any of the listed grammar types.
type AnyType []string

func (a AnyType) Match(n *sitter.Node, _ []byte) bool {
	for _, t := range a {
		if n.Type() == t {
			return true
		}
	}
	return false
}

// PropertyNamed matches object literal pairs whose key is the given name,
// written either bare or quoted.
type PropertyNamed string

func (p PropertyNamed) Match(n *sitter.Node, source []byte) bool {
	if n.Type() != "pair" {
		return false
	}
	return PropertyKey(n, source) == string(p)
}

// CallNamed matches call expressions whose callee is the given identifier,
// or a member access ending in the given property name.
type CallNamed string

func (c CallNamed) Match(n *sitter.Node, source []byte) bool {
	if n.Type() != "call_expression" {
		return false
	}
	return calleeName(n.ChildByFieldName("function"), source) == string(c)
}

var classDeclaration = AnyType{"class_declaration", "abstract_class_declaration", "class"}

// PropertyKey returns the key text of a pair node.
func PropertyKey(pair *sitter.Node, source []byte) string {
	key := pair.ChildByFieldName("key")
	if key == nil {
		return ""
	}
	if v, ok := StringValue(key, source); ok {
		return v
	}
	if key.Type() == "property_identifier" {
		return string(source[key.StartByte():key.EndByte()])
	}
	return ""
}

// FindNodes collects the nodes under root matching pred in document order.
// When recursive is false the search does not descend into a matched node.
func FindNodes(root *sitter.Node, source []byte, pred Predicate, recursive bool) []*sitter.Node {
	var nodes []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if pred.Match(n, source) {
			nodes = append(nodes, n)
			if !recursive {
				return
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return nodes
}

// Find returns every node of the unit matching pred, nested matches included.
func (u *Unit) Find(pred Predicate) []*sitter.Node {
	return FindNodes(u.Root(), u.Source, pred, true)
}
