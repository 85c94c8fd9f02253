// Out of the box, Go's encoding/xml silently ignores anything it does not
// recognize: misspelled elements, unknown attributes, stray children. It also
// forgets where values came from, so a program consuming a configuration
// file cannot point its users at the offending line.
//
// This package implements an alternative, strict deserialization from
// position-annotated trees (see package `tree`).
//
// # Recommended use
//
// Declare the schema of `FooSchema` with struct tags (or implement
// `schema.Declarer`):
//
//	type FooSchema struct {
//	    ID      int           `xml:"id,attr"`
//	    Name    string        `xml:"name" position:"NamePos"`
//	    NamePos tree.Position
//	    Extra   []tree.Node   `xml:",any"`
//	}
//
// then build a deserializer once and reuse it:
//
//	deserializer, err := deserialize.MakeTreeDeserializer[FooSchema](deserialize.XMLOptions(""))
//	...
//	foo, err := deserializer.DeserializeBytes(source)
//
// - To define default values for fields (in particular private fields), implement `Initializer`
//
//	func (result *FooSchema) Initialize() err {
//	   result.MyField1 = defaultValue1
//	   result.MyField2 = defaultValue2
//	   ...
//	   return err
//	}
//
// - To define a validator, implement `Validator`
//
//	func (result *FooSchema) Validate() err {
//	   if result.MyField1 > 100 {
//	       return fmt.Errorf("invalid value for MyField1!") // The error will be visible to end users.
//	   }
//	   ...
//	   return nil
//	}
//
// Different behavior from encoding/xml:
//   - every attribute and every child element of every mapped node must be
//     accounted for, either by a role or by a wildcard bag (`xml:",any,attr"`,
//     `xml:",any"`), otherwise deserialization fails with `UnexpectedNodeError`
//     carrying the line and column of the offending node;
//   - fields may receive the position of the node that filled them (tag `position`);
//   - array-wrapped collections (`xml:"Items,array" item:"item"`) check the name of
//     every item;
//   - if a value implements `Initializer`, we run the initializer before deserializing
//     the value;
//   - if a data structure supports `Validator`, we run validation during deserialization
//     and fail if validation rejects the value;
//   - we attempt to detect errors early and fail when setting up the deserializer, instead
//     of ignoring errors and/or failing during deserialization.
package deserialize

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/pasqal-io/godasse-tree/deserialize/schema"
	"github.com/pasqal-io/godasse-tree/deserialize/shared"
	"github.com/pasqal-io/godasse-tree/deserialize/tree"
	"github.com/pasqal-io/godasse-tree/deserialize/xml"
	"github.com/pasqal-io/godasse-tree/deserialize/yaml"
)

// -------- Public API --------

type (
	InputError          = shared.InputError
	UnexpectedNodeError = shared.UnexpectedNodeError
	SchemaError         = shared.SchemaError
	InternalError       = shared.InternalError
)

// Options for building a deserializer.
//
// See also XMLOptions, YAMLOptions for reasonable default values.
type Options struct {
	// The name of tags used for roles (e.g. "xml").
	//
	// If you leave this blank, defaults to "xml".
	TagName string

	// Human-readable information on the nature of data
	// you'll be deserializing with this deserializer.
	//
	// Used for logging and error messages.
	//
	// For instance, if you're deserializing a configuration
	// file, its file name is an acceptable value for RootPath.
	//
	// Optional. If you leave this blank, no human-readable
	// information will be added.
	RootPath string

	// If specified, the name the root node must have.
	RootName string

	// A driver, used to parse documents when they are provided
	// as []byte, string or io.Reader.
	//
	// Optional if you only ever call `DeserializeNode`.
	Driver shared.Driver

	// The logger used to report failures of custom code.
	//
	// If you leave this blank, defaults to `slog.Default()`.
	Logger *slog.Logger
}

// A preset fit for consuming XML.
//
// Params:
//   - root A human-readable root (e.g. the name of the file). Used only
//     for error reporting. `""` is a perfectly acceptable root.
func XMLOptions(root string) Options {
	return Options{ //nolint:exhaustruct
		TagName:  schema.DefaultTagName,
		RootPath: root,
		Driver:   xml.Driver{}, //nolint:exhaustruct
	}
}

// A preset fit for consuming YAML.
//
// The tag name is `xml`, so that the same types may be read from both
// formats.
//
// Params:
//   - root A human-readable root (e.g. the name of the file). Used only
//     for error reporting. `""` is a perfectly acceptable root.
func YAMLOptions(root string) Options {
	return Options{ //nolint:exhaustruct
		TagName:  schema.DefaultTagName,
		RootPath: root,
		Driver:   yaml.Driver{}, //nolint:exhaustruct
	}
}

// A deserializer from trees.
type TreeDeserializer[To any] interface {
	// Deserialize a value from an already parsed tree.
	DeserializeNode(tree.Node) (*To, error)

	// Parse a document with the driver, then deserialize it.
	DeserializeBytes([]byte) (*To, error)
	DeserializeString(string) (*To, error)
	DeserializeReader(io.Reader) (*To, error)
}

type TreeReflectDeserializer interface {
	// Deserialize a value from a tree into `out`, which must be settable
	// and of the type the deserializer was built for.
	DeserializeNodeTo(node tree.Node, out *reflect.Value) error
}

// Create a deserializer from trees.
//
// This discovers the schema of `T` and of every type reachable from `T`,
// failing with `*SchemaError` if any of them is misannotated.
func MakeTreeDeserializer[T any](options Options) (TreeDeserializer[T], error) {
	var placeholder T
	inner, err := makeReflectDeserializer(options, reflect.TypeOf(placeholder))
	if err != nil {
		return nil, err
	}
	return treeDeserializer[T]{
		inner: inner,
	}, nil
}

func MakeTreeDeserializerFromReflect(options Options, typ reflect.Type) (TreeReflectDeserializer, error) {
	return makeReflectDeserializer(options, typ)
}

// Deserialize a `T` from `root`, using tag `xml`.
func Deserialize[T any](root tree.Node) (*T, error) {
	deserializer, err := MakeTreeDeserializer[T](Options{}) //nolint:exhaustruct
	if err != nil {
		return nil, err
	}
	return deserializer.DeserializeNode(root)
}

// An error that arises because of a bug in a custom deserializer.
type CustomDeserializerError struct {
	// The operation that failed, e.g. "initialize".
	Operation string

	// The kind of value we were applying it to, e.g. "struct", "collection".
	Structure string

	// The underlying error.
	Wrapped error
}

// Return the user-facing message.
func (e CustomDeserializerError) Error() string {
	return e.Wrapped.Error()
}

// Unwrap the error.
func (e CustomDeserializerError) Unwrap() error {
	return e.Wrapped
}

var _ error = CustomDeserializerError{} //nolint:exhaustruct

// ----------------- Private

type reflectDeserializer struct {
	typ      reflect.Type
	path     string
	rootName string
	driver   shared.Driver
	populator
}

func makeReflectDeserializer(options Options, typ reflect.Type) (*reflectDeserializer, error) {
	if typ == nil {
		return nil, errors.New("cannot deserialize into an interface type")
	}
	tagName := options.TagName
	if tagName == "" {
		tagName = schema.DefaultTagName
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := schema.For(tagName)
	if err := registry.Walk(typ); err != nil {
		return nil, err //nolint:wrapcheck
	}

	path := typeName(typ)
	if options.RootPath != "" {
		path = fmt.Sprint(options.RootPath, ".", path)
	}
	return &reflectDeserializer{
		typ:      typ,
		path:     path,
		rootName: options.RootName,
		driver:   options.Driver,
		populator: populator{
			registry: registry,
			logger:   logger,
		},
	}, nil
}

func (rd *reflectDeserializer) DeserializeNodeTo(node tree.Node, out *reflect.Value) error {
	if out == nil || !out.CanSet() || out.Type() != rd.typ {
		return &InternalError{Description: fmt.Sprintf("expected a settable %s", rd.typ)}
	}
	if node == nil {
		return &InputError{Reason: "no root element"} //nolint:exhaustruct
	}
	if rd.rootName != "" && node.Name() != rd.rootName {
		return &UnexpectedNodeError{ //nolint:exhaustruct
			Name:     node.Name(),
			Kind:     shared.NodeElement,
			Position: node.Position(),
			Path:     rd.path,
		}
	}
	result, err := rd.build(rd.path, rd.typ, node)
	if err != nil {
		return err
	}
	out.Set(result.Elem())
	return nil
}

func (rd *reflectDeserializer) parse(source []byte) (tree.Node, error) {
	if rd.driver == nil {
		return nil, errors.New("please specify a driver")
	}
	node, err := rd.driver.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("at %s, failed to parse source:\n\t * %w", rd.path, err)
	}
	return node, nil
}

type treeDeserializer[T any] struct {
	inner *reflectDeserializer
}

func (me treeDeserializer[T]) DeserializeNode(node tree.Node) (*T, error) {
	out := new(T)
	slot := reflect.ValueOf(out).Elem()
	if err := me.inner.DeserializeNodeTo(node, &slot); err != nil {
		return nil, err
	}
	return out, nil
}

func (me treeDeserializer[T]) DeserializeBytes(source []byte) (*T, error) {
	node, err := me.inner.parse(source)
	if err != nil {
		return nil, err
	}
	return me.DeserializeNode(node)
}

func (me treeDeserializer[T]) DeserializeString(source string) (*T, error) {
	return me.DeserializeBytes([]byte(source))
}

func (me treeDeserializer[T]) DeserializeReader(reader io.Reader) (*T, error) {
	source, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("at %s, failed to read source:\n\t * %w", me.inner.path, err)
	}
	return me.DeserializeBytes(source)
}

// Return a (mostly) human-readable type name for a Go type.
func typeName(typ reflect.Type) string {
	fullName := typ.Name()
	if fullName == "" {
		return typ.String()
	}
	pkgName := fmt.Sprint(typ.PkgPath(), ".")
	return strings.ReplaceAll(fullName, pkgName, "")
}
