// Schemas describe how the nodes of a document map onto the fields of a
// Go struct.
//
// A schema is discovered once per type, either from struct tags
//
//	type Thing struct {
//	    ID      int           `xml:"id,attr"`
//	    Name    string        `xml:"name" position:"NamePos"`
//	    NamePos tree.Position
//	    Items   []string      `xml:"Items,array" item:"item"`
//	    Body    string        `xml:",text"`
//	    Attrs   []tree.Attr   `xml:",any,attr"`
//	    Extra   []tree.Node   `xml:",any"`
//	    Pos     tree.Position `xml:",position"`
//	}
//
// or, for types implementing `Declarer`, from an explicit `Declaration`.
// Schemas are validated when they are discovered: a schema that is
// internally inconsistent fails with `*shared.SchemaError` before any
// document is read.
package schema

import (
	"reflect"

	"github.com/pasqal-io/godasse-tree/assertions/initialized"
	"github.com/pasqal-io/godasse-tree/deserialize/shared"
	"github.com/pasqal-io/godasse-tree/deserialize/tree"
)

// The meaning of a field with respect to the document.
type Role int

const (
	// Filled from a child element with the field's binding name.
	RoleElement Role = iota + 1

	// Filled from an attribute with the field's binding name.
	RoleAttribute

	// A collection filled from the children of a wrapper element.
	RoleArray

	// Filled from the trimmed text of the node.
	RoleText

	// A collection of `tree.Attr` receiving all unmatched attributes.
	RoleAnyAttributes

	// A collection of `tree.Node` receiving all unmatched child elements.
	RoleAnyElements
)

func (r Role) String() string {
	switch r {
	case RoleElement:
		return "element"
	case RoleAttribute:
		return "attribute"
	case RoleArray:
		return "array"
	case RoleText:
		return "text"
	case RoleAnyAttributes:
		return "attribute bag"
	case RoleAnyElements:
		return "element bag"
	default:
		return "unknown"
	}
}

// How the values stored in a field are built.
type ValueKind int

const (
	// Parsed from a string.
	KindScalar ValueKind = iota + 1

	// A struct, populated recursively from a node.
	KindComplex

	// A `tree.Attr`, stored as is.
	KindRawAttribute

	// A `tree.Node`, stored as is.
	KindRawNode
)

var (
	positionType = reflect.TypeOf(tree.Position{})
	attrType     = reflect.TypeOf(tree.Attr{})
	nodeType     = reflect.TypeOf((*tree.Node)(nil)).Elem()
)

// A field with a role.
type Field struct {
	// The name of the Go field.
	GoName string

	// The index path of the Go field, as used by `reflect.Value.FieldByIndex`.
	Index []int

	Role Role

	// The name of the attribute, element or wrapper element.
	//
	// Empty for text and bags.
	Name string

	// For arrays, the name expected for every child of the wrapper.
	ItemName string

	// The declared type of the field.
	Type reflect.Type

	// The type of a single value stored in the field: `Type` itself or,
	// for collections, the type of items.
	ItemType reflect.Type

	// `ItemType`, without the pointer if `Indirect`.
	Base reflect.Type

	// `true` if values are stored as pointers to `Base`.
	Indirect bool

	Kind ValueKind

	// For scalars, the parser from strings.
	Parser *shared.Parser

	// For collections, how to append items. `nil` for single values.
	Collection *Collection

	// Where to write the position of the node that filled this field, if anywhere.
	Sink *Sink
}

// Return the storage slot of this field within `owner`.
func (f *Field) Slot(owner reflect.Value) reflect.Value {
	return owner.FieldByIndex(f.Index)
}

// Store a value of type `ItemType` in this field of `owner`, appending it
// if the field is a collection.
func (f *Field) Store(owner reflect.Value, item reflect.Value) error {
	slot := f.Slot(owner)
	if f.Collection != nil {
		return f.Collection.Append(slot, item)
	}
	slot.Set(item)
	return nil
}

// The validated schema of a type.
//
// Only ever created by a `Registry`, immutable once created.
type TypeSchema struct {
	typ           reflect.Type
	fields        []*Field
	elements      map[string]*Field
	attributes    map[string]*Field
	arrays        map[string]*Field
	text          *Field
	anyAttributes *Field
	anyElements   *Field
	position      *Sink

	canSetPosition bool
	canInitialize  bool
	canValidate    bool

	witness initialized.IsInitialized
}

func newTypeSchema(typ reflect.Type) *TypeSchema {
	return &TypeSchema{
		typ:        typ,
		fields:     make([]*Field, 0),
		elements:   make(map[string]*Field),
		attributes: make(map[string]*Field),
		arrays:     make(map[string]*Field),
		witness:    initialized.Make(),
	}
}

// The type described by this schema.
func (s *TypeSchema) Type() reflect.Type {
	s.witness.Assert()
	return s.typ
}

// All fields with a role, in declaration order.
func (s *TypeSchema) Fields() []*Field {
	s.witness.Assert()
	return s.fields
}

// The field mapped to element `name`, if any.
func (s *TypeSchema) Element(name string) *Field {
	s.witness.Assert()
	return s.elements[name]
}

// The field mapped to attribute `name`, if any.
func (s *TypeSchema) Attribute(name string) *Field {
	s.witness.Assert()
	return s.attributes[name]
}

// The array field whose wrapper element is `name`, if any.
func (s *TypeSchema) Array(name string) *Field {
	s.witness.Assert()
	return s.arrays[name]
}

// The field receiving the text of the node, if any.
func (s *TypeSchema) Text() *Field {
	s.witness.Assert()
	return s.text
}

// The bag receiving unmatched attributes, if any.
func (s *TypeSchema) AnyAttributes() *Field {
	s.witness.Assert()
	return s.anyAttributes
}

// The bag receiving unmatched elements, if any.
func (s *TypeSchema) AnyElements() *Field {
	s.witness.Assert()
	return s.anyElements
}

// The field receiving the position of the node itself, if any.
func (s *TypeSchema) Position() *Sink {
	s.witness.Assert()
	return s.position
}

// `true` if pointers to this type implement `shared.PositionSetter`.
func (s *TypeSchema) CanSetPosition() bool {
	s.witness.Assert()
	return s.canSetPosition
}

// `true` if pointers to this type implement `validation.Initializer`.
func (s *TypeSchema) CanInitialize() bool {
	s.witness.Assert()
	return s.canInitialize
}

// `true` if pointers to this type implement `validation.Validator`.
func (s *TypeSchema) CanValidate() bool {
	s.witness.Assert()
	return s.canValidate
}
