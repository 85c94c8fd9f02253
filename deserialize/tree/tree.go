// The position-annotated document tree consumed by the deserializer.
//
// Front-ends (see packages `deserialize/xml` and `deserialize/yaml`) turn raw
// input into a tree of `Node`. The deserializer never looks at raw input, it
// only walks nodes.
package tree

import (
	"fmt"
	"strings"
)

// A position in a source document.
//
// Lines and columns both start at 1. A zero `Position` means "unknown",
// a zero `Column` alone means the column is unknown.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	if p.Column == 0 {
		return fmt.Sprintf("line %d", p.Line)
	}
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// Return `true` if this position was never set.
func (p Position) IsZero() bool {
	return p.Line == 0 && p.Column == 0
}

// An attribute, as found in the document.
//
// This is also the raw attribute record stored in attribute bags, i.e.
// fields declared with `xml:",any,attr"`.
type Attr struct {
	Name     string
	Value    string
	Position Position
}

// A node in the document tree.
//
// Nodes stored in element bags (fields declared with `xml:",any"`) keep
// their full sub-tree.
type Node interface {
	// The name of the node, including its prefix if any.
	Name() string

	// Attributes, in document order.
	Attributes() []Attr

	// Child elements, in document order.
	Children() []Node

	// The concatenation of the direct text content of this node.
	//
	// Text held by children is not included.
	Text() string

	// The position of the node in the source document.
	Position() Position
}

// The standard implementation of `Node`.
//
// Use `NewElement` to create one.
type Element struct {
	name     string
	attrs    []Attr
	children []Node
	text     strings.Builder
	position Position
}

// Create an element without attributes, children or text.
func NewElement(name string, position Position) *Element {
	return &Element{
		name:     name,
		position: position,
	}
}

func (e *Element) Name() string {
	return e.name
}

func (e *Element) Attributes() []Attr {
	return e.attrs
}

func (e *Element) Children() []Node {
	return e.children
}

func (e *Element) Text() string {
	return e.text.String()
}

func (e *Element) Position() Position {
	return e.position
}

// Append an attribute.
func (e *Element) AddAttr(attr Attr) *Element {
	e.attrs = append(e.attrs, attr)
	return e
}

// Append a child node.
func (e *Element) AppendChild(child Node) *Element {
	e.children = append(e.children, child)
	return e
}

// Append a segment of direct text.
func (e *Element) AppendText(text string) *Element {
	e.text.WriteString(text)
	return e
}

var _ Node = &Element{} //nolint:exhaustruct

// Look up an attribute by name.
func Lookup(node Node, name string) (Attr, bool) {
	for _, attr := range node.Attributes() {
		if attr.Name == name {
			return attr, true
		}
	}
	return Attr{}, false
}

// Return the depth of the tree rooted at `node`, a single node having depth 1.
func Depth(node Node) int {
	deepest := 0
	for _, child := range node.Children() {
		if d := Depth(child); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
