// Code specific to reading YAML documents.
//
// YAML has no attributes and no mixed content, so we use the following
// conventions to map a YAML document onto a tree:
//
//	Thing:              # The document is a mapping with a single key, the root.
//	  "@id": 7          # Keys starting with `@` are attributes.
//	  name: Ann         # Scalars are elements with text content.
//	  items:            # Mappings are elements with children.
//	    item: [a, b]    # Sequences are repeated elements.
//	  note:
//	    "@lang": en
//	    "#text": hello  # Key `#text` holds the text of an element with attributes.
package yaml

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pasqal-io/godasse-tree/deserialize/shared"
	"github.com/pasqal-io/godasse-tree/deserialize/tree"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	DefaultAttributePrefix = "@"
	DefaultTextKey         = "#text"
)

// The deserialization driver for YAML.
type Driver struct {
	// The maximal number of nested elements, 0 for unlimited.
	MaxDepth int

	// The prefix marking attribute keys. If empty, `DefaultAttributePrefix`.
	AttributePrefix string

	// The key holding the text of an element. If empty, `DefaultTextKey`.
	TextKey string
}

// Parse a complete document.
func (d Driver) Parse(source []byte) (tree.Node, error) {
	var document yamlv3.Node
	if err := yamlv3.Unmarshal(source, &document); err != nil {
		return nil, &shared.InputError{Position: errorPosition(err), Reason: "malformed YAML", Cause: err}
	}
	if document.Kind != yamlv3.DocumentNode || len(document.Content) == 0 {
		return nil, &shared.InputError{Reason: "no root element"} //nolint:exhaustruct
	}
	top := resolve(document.Content[0])
	if top.Kind != yamlv3.MappingNode || len(top.Content) != 2 { //nolint:mnd
		return nil, &shared.InputError{ //nolint:exhaustruct
			Position: position(top),
			Reason:   "expected a mapping with a single key naming the root element",
		}
	}
	b := builder{
		driver:          d,
		attributePrefix: d.AttributePrefix,
		textKey:         d.TextKey,
	}
	if b.attributePrefix == "" {
		b.attributePrefix = DefaultAttributePrefix
	}
	if b.textKey == "" {
		b.textKey = DefaultTextKey
	}
	return b.element(top.Content[0].Value, position(top.Content[0]), top.Content[1], 1)
}

var _ shared.Driver = Driver{} //nolint:exhaustruct

// yaml.v3 reports syntax errors as text, with a line but no column.
var errorLine = regexp.MustCompile(`^yaml: line (\d+):`)

// Recover the line of a syntax error, if yaml.v3 reported one.
func errorPosition(err error) tree.Position {
	match := errorLine.FindStringSubmatch(err.Error())
	if match == nil {
		return tree.Position{} //nolint:exhaustruct
	}
	line, err := strconv.Atoi(match[1])
	if err != nil {
		return tree.Position{} //nolint:exhaustruct
	}
	return tree.Position{Line: line} //nolint:exhaustruct
}

type builder struct {
	driver          Driver
	attributePrefix string
	textKey         string
}

func (b builder) element(name string, pos tree.Position, value *yamlv3.Node, depth int) (*tree.Element, error) {
	if b.driver.MaxDepth > 0 && depth > b.driver.MaxDepth {
		return nil, &shared.InputError{Position: pos, Reason: fmt.Sprintf("document is nested deeper than %d elements", b.driver.MaxDepth)} //nolint:exhaustruct
	}
	element := tree.NewElement(name, pos)
	value = resolve(value)
	switch value.Kind {
	case yamlv3.ScalarNode:
		if value.Tag != "!!null" {
			element.AppendText(value.Value)
		}
	case yamlv3.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, content := value.Content[i], resolve(value.Content[i+1])
			if err := b.entry(element, key, content, depth); err != nil {
				return nil, err
			}
		}
	default:
		return nil, &shared.InputError{Position: position(value), Reason: fmt.Sprintf("element %s must be a scalar or a mapping", name)} //nolint:exhaustruct
	}
	return element, nil
}

func (b builder) entry(parent *tree.Element, key *yamlv3.Node, content *yamlv3.Node, depth int) error {
	switch {
	case key.Value == b.textKey:
		if content.Kind != yamlv3.ScalarNode {
			return &shared.InputError{Position: position(content), Reason: fmt.Sprintf("%s must be a scalar", b.textKey)} //nolint:exhaustruct
		}
		parent.AppendText(content.Value)
	case strings.HasPrefix(key.Value, b.attributePrefix):
		if content.Kind != yamlv3.ScalarNode {
			return &shared.InputError{Position: position(content), Reason: fmt.Sprintf("attribute %s must be a scalar", key.Value)} //nolint:exhaustruct
		}
		parent.AddAttr(tree.Attr{
			Name:     strings.TrimPrefix(key.Value, b.attributePrefix),
			Value:    content.Value,
			Position: position(key),
		})
	case content.Kind == yamlv3.SequenceNode:
		for _, item := range content.Content {
			child, err := b.element(key.Value, position(item), item, depth+1)
			if err != nil {
				return err
			}
			parent.AppendChild(child)
		}
	default:
		child, err := b.element(key.Value, position(key), content, depth+1)
		if err != nil {
			return err
		}
		parent.AppendChild(child)
	}
	return nil
}

// Follow aliases.
func resolve(node *yamlv3.Node) *yamlv3.Node {
	for node.Kind == yamlv3.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func position(node *yamlv3.Node) tree.Position {
	return tree.Position{Line: node.Line, Column: node.Column}
}
