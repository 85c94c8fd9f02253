package deserialize

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/pasqal-io/godasse-tree/deserialize/schema"
	"github.com/pasqal-io/godasse-tree/deserialize/shared"
	"github.com/pasqal-io/godasse-tree/deserialize/tree"
	"github.com/pasqal-io/godasse-tree/validation"
)

// Walks nodes against schemas.
//
// Holds no per-document state, so it may be shared between goroutines.
type populator struct {
	registry *schema.Registry
	logger   *slog.Logger
}

// Construct a `typ` from `node`.
//
// Return a pointer to the fully populated and validated value.
func (p populator) build(path string, typ reflect.Type, node tree.Node) (reflect.Value, error) {
	typeSchema, err := p.registry.SchemaFor(typ)
	if err != nil {
		return reflect.Value{}, err //nolint:wrapcheck
	}
	resultPtr := reflect.New(typ)

	// If possible, perform pre-initialization with default values.
	if typeSchema.CanInitialize() {
		if initializer, ok := resultPtr.Interface().(validation.Initializer); ok {
			if err = initializer.Initialize(); err != nil {
				err = fmt.Errorf("at %s, encountered an error while initializing optional fields:\n\t * %w", path, err)
				p.logger.Error("Internal error during deserialization", "error", err)
				return reflect.Value{}, CustomDeserializerError{
					Wrapped:   err,
					Operation: "initializer",
					Structure: "struct",
				}
			}
		}
	}

	if err = p.populate(path, typeSchema, resultPtr.Elem(), node); err != nil {
		return reflect.Value{}, err
	}

	if typeSchema.CanValidate() {
		if validator, ok := resultPtr.Interface().(validation.Validator); ok {
			if err = validator.Validate(); err != nil {
				// Validation error, abort struct construction, wrap the error so that we can catch it.
				return reflect.Value{}, validation.WrapError(path, err)
			}
		}
	}
	return resultPtr, nil
}

// Populate `target`, an addressable struct, from `node`.
func (p populator) populate(path string, typeSchema *schema.TypeSchema, target reflect.Value, node tree.Node) error {
	if err := p.populateAttributes(path, typeSchema, target, node); err != nil {
		return err
	}
	if err := p.populateChildren(path, typeSchema, target, node); err != nil {
		return err
	}

	if field := typeSchema.Text(); field != nil {
		text := strings.TrimSpace(node.Text())
		// Leave the zero value rather than fail on e.g. a container
		// element whose text is only indentation.
		if text != "" || field.Base.Kind() == reflect.String {
			value, err := p.parseScalar(field, text)
			if err != nil {
				return &UnexpectedNodeError{
					Name:     node.Name(),
					Kind:     shared.NodeElement,
					Position: node.Position(),
					Path:     path,
					Cause:    err,
				}
			}
			if err = p.store(path, field, target, value, node.Name(), shared.NodeElement, node.Position()); err != nil {
				return err
			}
		}
	}

	if sink := typeSchema.Position(); sink != nil {
		sink.Write(target, node.Position())
	}
	if typeSchema.CanSetPosition() {
		setter, ok := target.Addr().Interface().(shared.PositionSetter)
		if !ok {
			return &InternalError{Description: fmt.Sprintf("at %s, expected a PositionSetter", path)}
		}
		setter.SetPosition(node.Position())
	}
	return nil
}

func (p populator) populateAttributes(path string, typeSchema *schema.TypeSchema, target reflect.Value, node tree.Node) error {
	for _, attr := range node.Attributes() {
		if field := typeSchema.Attribute(attr.Name); field != nil {
			source := attr.Value
			if field.Base.Kind() != reflect.String {
				source = strings.TrimSpace(source)
			}
			value, err := p.parseScalar(field, source)
			if err != nil {
				return &UnexpectedNodeError{
					Name:     attr.Name,
					Kind:     shared.NodeAttribute,
					Position: attr.Position,
					Path:     path,
					Cause:    err,
				}
			}
			if err = p.store(path, field, target, value, attr.Name, shared.NodeAttribute, attr.Position); err != nil {
				return err
			}
			continue
		}
		if bag := typeSchema.AnyAttributes(); bag != nil {
			if err := p.store(path, bag, target, reflect.ValueOf(attr), attr.Name, shared.NodeAttribute, attr.Position); err != nil {
				return err
			}
			continue
		}
		return &UnexpectedNodeError{ //nolint:exhaustruct
			Name:     attr.Name,
			Kind:     shared.NodeAttribute,
			Position: attr.Position,
			Path:     path,
		}
	}
	return nil
}

func (p populator) populateChildren(path string, typeSchema *schema.TypeSchema, target reflect.Value, node tree.Node) error {
	for _, child := range node.Children() {
		name := child.Name()
		childPath := fmt.Sprint(path, ".", name)

		if field := typeSchema.Element(name); field != nil {
			value, err := p.value(childPath, field, child)
			if err != nil {
				return err
			}
			if err = p.store(path, field, target, value, name, shared.NodeElement, child.Position()); err != nil {
				return err
			}
			continue
		}

		if field := typeSchema.Array(name); field != nil {
			// The wrapper only holds items.
			if attrs := child.Attributes(); len(attrs) != 0 {
				return &UnexpectedNodeError{ //nolint:exhaustruct
					Name:     attrs[0].Name,
					Kind:     shared.NodeAttribute,
					Position: attrs[0].Position,
					Path:     childPath,
				}
			}
			for _, item := range child.Children() {
				if item.Name() != field.ItemName {
					return &UnexpectedNodeError{ //nolint:exhaustruct
						Name:     item.Name(),
						Kind:     shared.NodeElement,
						Position: item.Position(),
						Path:     childPath,
					}
				}
				value, err := p.value(fmt.Sprint(childPath, ".", item.Name()), field, item)
				if err != nil {
					return err
				}
				if err = p.store(childPath, field, target, value, item.Name(), shared.NodeElement, item.Position()); err != nil {
					return err
				}
			}
			continue
		}

		if bag := typeSchema.AnyElements(); bag != nil {
			raw := reflect.New(bag.ItemType).Elem()
			raw.Set(reflect.ValueOf(child))
			if err := p.store(path, bag, target, raw, name, shared.NodeElement, child.Position()); err != nil {
				return err
			}
			continue
		}

		return &UnexpectedNodeError{ //nolint:exhaustruct
			Name:     name,
			Kind:     shared.NodeElement,
			Position: child.Position(),
			Path:     path,
		}
	}
	return nil
}

// Build the value of type `field.ItemType` held by element `node`.
func (p populator) value(path string, field *schema.Field, node tree.Node) (reflect.Value, error) {
	switch field.Kind {
	case schema.KindScalar:
		// A scalar element holds nothing but text.
		if attrs := node.Attributes(); len(attrs) != 0 {
			return reflect.Value{}, &UnexpectedNodeError{ //nolint:exhaustruct
				Name:     attrs[0].Name,
				Kind:     shared.NodeAttribute,
				Position: attrs[0].Position,
				Path:     path,
			}
		}
		if children := node.Children(); len(children) != 0 {
			return reflect.Value{}, &UnexpectedNodeError{ //nolint:exhaustruct
				Name:     children[0].Name(),
				Kind:     shared.NodeElement,
				Position: children[0].Position(),
				Path:     path,
			}
		}
		source := node.Text()
		if field.Base.Kind() != reflect.String {
			source = strings.TrimSpace(source)
		}
		value, err := p.parseScalar(field, source)
		if err != nil {
			return reflect.Value{}, &UnexpectedNodeError{
				Name:     node.Name(),
				Kind:     shared.NodeElement,
				Position: node.Position(),
				Path:     path,
				Cause:    err,
			}
		}
		return value, nil
	case schema.KindComplex:
		ptr, err := p.build(path, field.Base, node)
		if err != nil {
			return reflect.Value{}, err
		}
		if field.Indirect {
			return ptr, nil
		}
		return ptr.Elem(), nil
	default:
		return reflect.Value{}, &InternalError{Description: fmt.Sprintf("at %s, field %s cannot be built from an element", path, field.GoName)}
	}
}

// Parse `source` into a value of type `field.ItemType`.
func (p populator) parseScalar(field *schema.Field, source string) (reflect.Value, error) {
	if field.Parser == nil {
		return reflect.Value{}, &InternalError{Description: fmt.Sprintf("no parser for field %s", field.GoName)}
	}
	parsed, err := (*field.Parser)(source)
	if err != nil {
		return reflect.Value{}, err
	}
	value := reflect.ValueOf(parsed).Convert(field.Base)
	if field.Indirect {
		ptr := reflect.New(field.Base)
		ptr.Elem().Set(value)
		return ptr, nil
	}
	return value, nil
}

// Store `value` in `field`, then record the position of the node it came from.
func (p populator) store(path string, field *schema.Field, target reflect.Value, value reflect.Value, name string, kind shared.NodeKind, position tree.Position) error {
	if err := field.Store(target, value); err != nil {
		var initErr schema.InitializationError
		if errors.As(err, &initErr) {
			err = fmt.Errorf("at %s, encountered an error while initializing %s:\n\t * %w", path, field.GoName, initErr.Wrapped)
			p.logger.Error("Internal error during deserialization", "error", err)
			return CustomDeserializerError{
				Wrapped:   err,
				Operation: "initializer",
				Structure: "collection",
			}
		}
		return &UnexpectedNodeError{
			Name:     name,
			Kind:     kind,
			Position: position,
			Path:     path,
			Cause:    err,
		}
	}
	if field.Sink != nil {
		field.Sink.Write(target, position)
	}
	return nil
}
