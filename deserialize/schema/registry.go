package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/pasqal-io/godasse-tree/deserialize/shared"
	"github.com/pasqal-io/godasse-tree/deserialize/tags"
	"github.com/pasqal-io/godasse-tree/validation"
)

// The tag used when none is specified.
const DefaultTagName = "xml"

// A cache of schemas, keyed by type.
//
// Every type is discovered at most once per registry, even when several
// goroutines ask for it concurrently. Errors are cached as well: a
// misannotated type fails the same way forever.
type Registry struct {
	tagName string
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[reflect.Type]*entry
}

type entry struct {
	once   sync.Once
	schema *TypeSchema
	err    error
}

// Create an empty registry reading roles from tag `tagName`.
//
// If `logger` is nil, use `slog.Default()`.
func NewRegistry(tagName string, logger *slog.Logger) *Registry {
	if tagName == "" {
		tagName = DefaultTagName
	}
	return &Registry{
		tagName: tagName,
		logger:  logger,
		entries: make(map[reflect.Type]*entry),
	}
}

var registriesMu sync.Mutex
var registries = make(map[string]*Registry)

// Return the process-wide registry for tag `tagName`.
func For(tagName string) *Registry {
	if tagName == "" {
		tagName = DefaultTagName
	}
	registriesMu.Lock()
	defer registriesMu.Unlock()
	registry, ok := registries[tagName]
	if !ok {
		registry = NewRegistry(tagName, nil)
		registries[tagName] = registry
	}
	return registry
}

// The name of the tag holding roles.
func (r *Registry) TagName() string {
	return r.tagName
}

func (r *Registry) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Return the schema of `typ`, discovering it if necessary.
//
// Calling this twice with the same type returns the same schema.
func (r *Registry) SchemaFor(typ reflect.Type) (*TypeSchema, error) {
	r.mu.Lock()
	e, ok := r.entries[typ]
	if !ok {
		e = &entry{} //nolint:exhaustruct
		r.entries[typ] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.schema, e.err = r.discover(typ)
		if e.err != nil {
			r.log().Debug("invalid schema", "type", typ, "tag", r.tagName, "error", e.err)
		} else {
			r.log().Debug("discovered schema", "type", typ, "tag", r.tagName, "fields", len(e.schema.fields))
		}
	})
	return e.schema, e.err
}

// Discover the schemas of `typ` and of every struct type reachable from
// it, so that misannotations surface before reading any document.
func (r *Registry) Walk(typ reflect.Type) error {
	visited := make(map[reflect.Type]bool)
	queue := []reflect.Type{typ}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		schema, err := r.SchemaFor(current)
		if err != nil {
			return err
		}
		for _, field := range schema.Fields() {
			if field.Kind == KindComplex {
				queue = append(queue, field.Base)
			}
		}
	}
	return nil
}

// ----------------- Discovery

var (
	initializerInterface    = reflect.TypeOf((*validation.Initializer)(nil)).Elem()
	validatorInterface      = reflect.TypeOf((*validation.Validator)(nil)).Elem()
	declarerInterface       = reflect.TypeOf((*Declarer)(nil)).Elem()
	positionSetterInterface = reflect.TypeOf((*shared.PositionSetter)(nil)).Elem()
)

// A role declaration, resolved to a Go field.
type declaration struct {
	field reflect.StructField

	// Zero for the whole-node position sink.
	role Role

	name string
	item string
	sink string
}

func (r *Registry) discover(typ reflect.Type) (*TypeSchema, error) {
	if typ.Kind() != reflect.Struct {
		return nil, &shared.SchemaError{Type: typeName(typ), Description: "only structs can be deserialized from a node"} //nolint:exhaustruct
	}

	var declarations []declaration
	var err error
	if reflect.PointerTo(typ).Implements(declarerInterface) {
		declarations, err = r.explicitDeclarations(typ)
	} else {
		declarations, err = r.tagDeclarations(typ, nil)
	}
	if err != nil {
		return nil, err
	}

	schema := newTypeSchema(typ)
	for _, declaration := range declarations {
		if err := bind(schema, declaration); err != nil {
			return nil, err
		}
	}

	schema.canInitialize, err = canInterface(typ, initializerInterface)
	if err != nil {
		return nil, err
	}
	schema.canValidate, err = canInterface(typ, validatorInterface)
	if err != nil {
		return nil, err
	}
	schema.canSetPosition = reflect.PointerTo(typ).Implements(positionSetterInterface)
	return schema, nil
}

// Read declarations from `DeclareSchema`.
func (r *Registry) explicitDeclarations(typ reflect.Type) ([]declaration, error) {
	declarer, ok := reflect.New(typ).Interface().(Declarer)
	if !ok {
		return nil, &shared.InternalError{Description: fmt.Sprintf("%s was expected to implement Declarer", typ)}
	}
	var explicit Declaration
	declarer.DeclareSchema(&explicit)
	if len(explicit.errs) != 0 {
		return nil, &shared.SchemaError{Type: typeName(typ), Description: errors.Join(explicit.errs...).Error()} //nolint:exhaustruct
	}

	if tagged, _ := r.tagDeclarations(typ, nil); len(tagged) != 0 {
		r.log().Warn("Type declares its schema with DeclareSchema and with tags, ignoring tags", "type", typ, "tag", r.tagName)
	}

	result := make([]declaration, 0, len(explicit.entries))
	for _, e := range explicit.entries {
		field, ok := typ.FieldByName(e.field)
		if !ok {
			return nil, &shared.SchemaError{Type: typeName(typ), Field: e.field, Description: "no such field"}
		}
		result = append(result, declaration{
			field: field,
			role:  e.role,
			name:  e.name,
			item:  e.item,
			sink:  e.sink,
		})
	}
	return result, nil
}

// Read declarations from struct tags, flattening untagged embedded structs.
func (r *Registry) tagDeclarations(typ reflect.Type, prefix []int) ([]declaration, error) {
	result := make([]declaration, 0)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		field.Index = append(append(make([]int, 0, len(prefix)+1), prefix...), i)

		parsed, err := tags.Parse(field.Tag)
		if err != nil {
			return nil, &shared.SchemaError{Type: typeName(typ), Field: field.Name, Description: err.Error()}
		}
		mapping, ok := parsed.Mapping(r.tagName)
		if !ok {
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				embedded, err := r.tagDeclarations(field.Type, field.Index)
				if err != nil {
					return nil, err
				}
				result = append(result, embedded...)
				continue
			}
			if parsed.ItemName() != nil || parsed.PositionSink() != nil {
				return nil, &shared.SchemaError{Type: typeName(typ), Field: field.Name, Description: fmt.Sprintf("tags `%s` and `%s` require a `%s` tag", tags.ItemTag, tags.PositionTag, r.tagName)}
			}
			continue
		}
		if mapping.Name == "-" {
			continue
		}

		role, err := roleFromFlags(mapping)
		if err != nil {
			return nil, &shared.SchemaError{Type: typeName(typ), Field: field.Name, Description: err.Error()}
		}
		declaration := declaration{
			field: field,
			role:  role,
			name:  mapping.Name,
		}
		if item := parsed.ItemName(); item != nil {
			declaration.item = *item
		}
		if sink := parsed.PositionSink(); sink != nil {
			declaration.sink = *sink
		}
		result = append(result, declaration)
	}
	return result, nil
}

var knownFlags = map[string]bool{
	"attr":     true,
	"any":      true,
	"array":    true,
	"text":     true,
	"position": true,
}

func roleFromFlags(mapping tags.Mapping) (Role, error) {
	for _, flag := range mapping.Flags {
		if !knownFlags[flag] {
			return 0, fmt.Errorf("unknown flag %q", flag)
		}
	}
	var role Role
	switch strings.Join(mapping.Flags, ",") {
	case "":
		role = RoleElement
	case "attr":
		role = RoleAttribute
	case "array":
		role = RoleArray
	case "text":
		role = RoleText
	case "any":
		role = RoleAnyElements
	case "any,attr", "attr,any":
		role = RoleAnyAttributes
	case "position":
		role = 0
	default:
		return 0, fmt.Errorf("contradictory flags %q", strings.Join(mapping.Flags, ","))
	}
	switch {
	case mapping.Name == "":
	case role == RoleText, role == RoleAnyElements, role == RoleAnyAttributes, role == 0:
		return 0, fmt.Errorf("flags %q do not take a name, got %q", strings.Join(mapping.Flags, ","), mapping.Name)
	}
	return role, nil
}

// Classify a declaration and add it to `schema`.
func bind(schema *TypeSchema, declaration declaration) error {
	typ := schema.typ
	structField := declaration.field
	fail := func(format string, args ...any) error {
		return &shared.SchemaError{
			Type:        typeName(typ),
			Field:       structField.Name,
			Description: fmt.Sprintf(format, args...),
		}
	}
	if !structField.IsExported() {
		return fail("field is not public, it cannot receive data")
	}
	// `FieldByIndex` cannot traverse nil pointers to embedded structs.
	current := typ
	for _, i := range structField.Index[:len(structField.Index)-1] {
		current = current.Field(i).Type
		if current.Kind() == reflect.Pointer {
			return fail("field %s is promoted through a pointer", structField.Name)
		}
	}

	if declaration.role == 0 {
		if schema.position != nil {
			return fail("only one field may receive the position of the node, %s already does", schema.position.GoName)
		}
		sink, err := newSink(typ, structField.Name)
		if err != nil {
			return fail("%s", err)
		}
		schema.position = sink
		return nil
	}

	field := &Field{ //nolint:exhaustruct
		GoName:   structField.Name,
		Index:    structField.Index,
		Role:     declaration.role,
		Type:     structField.Type,
		ItemType: structField.Type,
	}
	if collection, itemType := collectionOf(structField.Type); collection != nil {
		field.Collection = collection
		field.ItemType = itemType
	}
	field.Base = field.ItemType
	if field.Base.Kind() == reflect.Pointer {
		field.Indirect = true
		field.Base = field.Base.Elem()
	}

	switch declaration.role {
	case RoleAnyAttributes:
		if field.Collection == nil || field.ItemType != attrType {
			return fail("an attribute bag must be a collection of tree.Attr, got %s", structField.Type)
		}
		field.Kind = KindRawAttribute
	case RoleAnyElements:
		if field.Collection == nil || field.ItemType != nodeType {
			return fail("an element bag must be a collection of tree.Node, got %s", structField.Type)
		}
		field.Kind = KindRawNode
	default:
		switch {
		case shared.IsScalar(field.Base):
			field.Kind = KindScalar
			field.Parser = shared.LookupParser(field.Base)
		case field.Base.Kind() == reflect.Struct:
			field.Kind = KindComplex
		case field.Base.Kind() == reflect.Interface:
			return fail("cannot construct values of interface type %s", field.Base)
		default:
			return fail("unsupported scalar kind %s", field.Base)
		}
	}

	switch declaration.role {
	case RoleAttribute, RoleText:
		if field.Kind != KindScalar || field.Collection != nil {
			return fail("a field with role %s must hold a single scalar, got %s", declaration.role, structField.Type)
		}
	case RoleArray:
		if field.Collection == nil {
			return fail("a field with role %s must be a collection, got %s", declaration.role, structField.Type)
		}
	default:
	}

	field.Name = declaration.name
	switch declaration.role {
	case RoleAttribute, RoleElement, RoleArray:
		if field.Name == "" {
			field.Name = structField.Name
		}
	default:
	}
	if declaration.role == RoleArray {
		field.ItemName = declaration.item
		if field.ItemName == "" {
			// Default to the name of the item type.
			field.ItemName = field.Base.Name()
		}
		if field.ItemName == "" {
			return fail("cannot name items of unnamed type %s, please specify tag `%s`", field.Base, tags.ItemTag)
		}
	} else if declaration.item != "" {
		return fail("only arrays may specify an item name")
	}

	if declaration.sink != "" {
		sink, err := newSink(typ, declaration.sink)
		if err != nil {
			return fail("%s", err)
		}
		field.Sink = sink
	}

	switch declaration.role {
	case RoleAttribute:
		if previous, ok := schema.attributes[field.Name]; ok {
			return fail("attribute %q is already mapped to field %s", field.Name, previous.GoName)
		}
		schema.attributes[field.Name] = field
	case RoleElement, RoleArray:
		previous, ok := schema.elements[field.Name]
		if !ok {
			previous, ok = schema.arrays[field.Name]
		}
		if ok {
			return fail("element %q is already mapped to field %s", field.Name, previous.GoName)
		}
		if declaration.role == RoleElement {
			schema.elements[field.Name] = field
		} else {
			schema.arrays[field.Name] = field
		}
	case RoleText:
		if schema.text != nil {
			return fail("only one field may receive the text of the node, %s already does", schema.text.GoName)
		}
		schema.text = field
	case RoleAnyAttributes:
		if schema.anyAttributes != nil {
			return fail("only one field may collect unmatched attributes, %s already does", schema.anyAttributes.GoName)
		}
		schema.anyAttributes = field
	case RoleAnyElements:
		if schema.anyElements != nil {
			return fail("only one field may collect unmatched elements, %s already does", schema.anyElements.GoName)
		}
		schema.anyElements = field
	}
	schema.fields = append(schema.fields, field)
	return nil
}

// Check that a type implements an interface *on pointers*.
func canInterface(typ reflect.Type, interfaceType reflect.Type) (bool, error) {
	ptrTyp := reflect.PointerTo(typ)
	if typ.Implements(interfaceType) {
		return false, &shared.SchemaError{ //nolint:exhaustruct
			Type:        typeName(typ),
			Description: fmt.Sprintf("type %s implements %s - it should be implemented by pointer type *%s instead", typ, interfaceType, typ),
		}
	}
	if ptrTyp.Implements(interfaceType) {
		return true, nil
	}
	return false, nil
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
