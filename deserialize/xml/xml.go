// Code specific to reading XML documents.
package xml

import (
	"bytes"
	stdxml "encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pasqal-io/godasse-tree/deserialize/internal"
	"github.com/pasqal-io/godasse-tree/deserialize/shared"
	"github.com/pasqal-io/godasse-tree/deserialize/tree"
)

// The deserialization driver for XML.
//
// Element positions point at the `<` opening the element. Attribute
// positions point at the first character of the attribute name.
type Driver struct {
	// The maximal number of nested elements, 0 for unlimited.
	MaxDepth int

	// If `true`, `xmlns` and `xmlns:*` declarations are reported as
	// attributes. By default, they are dropped.
	KeepNamespaceDeclarations bool
}

// Parse a complete document.
//
// Prefixes are kept verbatim in names (`p:name`), as we only match
// names, never namespaces.
func (d Driver) Parse(source []byte) (tree.Node, error) {
	lines := internal.NewLineIndex(source)
	decoder := stdxml.NewDecoder(bytes.NewReader(source))
	decoder.Strict = true

	var root *tree.Element
	stack := make([]*tree.Element, 0)
	for {
		// The previous token ends exactly where the next one starts, as
		// whitespace is reported as `CharData`.
		start := decoder.InputOffset()
		token, err := decoder.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &shared.InputError{
				Position: lines.Position(decoder.InputOffset()),
				Reason:   "malformed XML",
				Cause:    err,
			}
		}
		switch typed := token.(type) {
		case stdxml.StartElement:
			position := lines.Position(start)
			if root != nil && len(stack) == 0 {
				return nil, &shared.InputError{Position: position, Reason: "more than one root element"} //nolint:exhaustruct
			}
			if d.MaxDepth > 0 && len(stack) >= d.MaxDepth {
				return nil, &shared.InputError{Position: position, Reason: fmt.Sprintf("document is nested deeper than %d elements", d.MaxDepth)} //nolint:exhaustruct
			}
			element := tree.NewElement(qualifiedName(typed.Name), position)
			offsets := attributeOffsets(source[start:decoder.InputOffset()])
			for i, attr := range typed.Attr {
				if !d.KeepNamespaceDeclarations && isNamespaceDeclaration(attr.Name) {
					continue
				}
				attrPosition := position
				if len(offsets) == len(typed.Attr) {
					attrPosition = lines.Position(start + offsets[i])
				}
				element.AddAttr(tree.Attr{
					Name:     qualifiedName(attr.Name),
					Value:    attr.Value,
					Position: attrPosition,
				})
			}
			if len(stack) == 0 {
				root = element
			} else {
				stack[len(stack)-1].AppendChild(element)
			}
			stack = append(stack, element)
		case stdxml.EndElement:
			// `RawToken` does not check that tags match.
			name := qualifiedName(typed.Name)
			if len(stack) == 0 || stack[len(stack)-1].Name() != name {
				return nil, &shared.InputError{Position: lines.Position(start), Reason: fmt.Sprintf("unexpected closing tag </%s>", name)} //nolint:exhaustruct
			}
			stack = stack[:len(stack)-1]
		case stdxml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].AppendText(string(typed))
			} else if len(bytes.TrimSpace(typed)) != 0 {
				return nil, &shared.InputError{Position: lines.Position(start), Reason: "text outside of the root element"} //nolint:exhaustruct
			}
		default:
			// Comments, processing instructions and directives carry no data.
		}
	}
	if len(stack) != 0 {
		return nil, &shared.InputError{ //nolint:exhaustruct
			Position: lines.Position(int64(len(source))),
			Reason:   fmt.Sprintf("unexpected end of document, element <%s> is not closed", stack[len(stack)-1].Name()),
		}
	}
	if root == nil {
		return nil, &shared.InputError{Reason: "no root element"} //nolint:exhaustruct
	}
	return root, nil
}

var _ shared.Driver = Driver{} //nolint:exhaustruct

func qualifiedName(name stdxml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func isNamespaceDeclaration(name stdxml.Name) bool {
	return name.Space == "xmlns" || (name.Space == "" && name.Local == "xmlns")
}

// Return the offsets of attribute names within a raw start tag
// (`<name a="1" b='2'>`), in order.
func attributeOffsets(tag []byte) []int64 {
	offsets := make([]int64, 0)
	i := 1 // Skip `<`.
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '>' && tag[i] != '/' {
		i++
	}
	for i < len(tag) {
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] == '>' || tag[i] == '/' {
			break
		}
		offsets = append(offsets, int64(i))
		for i < len(tag) && tag[i] != '=' && !isSpace(tag[i]) {
			i++
		}
		for i < len(tag) && (isSpace(tag[i]) || tag[i] == '=') {
			i++
		}
		if i < len(tag) && (tag[i] == '"' || tag[i] == '\'') {
			quote := tag[i]
			i++
			for i < len(tag) && tag[i] != quote {
				i++
			}
			i++ // Skip the closing quote.
		}
	}
	return offsets
}

func isSpace(b byte) bool {
	return strings.IndexByte(" \t\r\n", b) >= 0
}
