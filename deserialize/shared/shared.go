package shared

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pasqal-io/godasse-tree/deserialize/tree"
	"golang.org/x/text/cases"
)

// A driver turning raw input into a tree.
type Driver interface {
	// Parse a complete document and return its root node.
	//
	// Fail with `*InputError` if no root can be located.
	Parse(source []byte) (tree.Node, error)
}

// A type whose values are named members, e.g.
//
//	type Color int
//
//	const (
//	    Red Color = iota
//	    Green
//	)
//
//	func (Color) EnumMembers() map[string]int64 {
//	    return map[string]int64{"Red": int64(Red), "Green": int64(Green)}
//	}
//
// Members are matched case-insensitively.
type Enum interface {
	EnumMembers() map[string]int64
}

// A type that wishes to receive the position of the node it was
// deserialized from.
//
// Must be implemented on pointers.
type PositionSetter interface {
	SetPosition(tree.Position)
}

// A parser for strings into scalar values.
type Parser func(source string) (any, error)

var (
	timeType            = reflect.TypeOf(time.Time{})
	durationType        = reflect.TypeOf(time.Duration(0))
	enumInterface       = reflect.TypeOf((*Enum)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Layouts accepted for `time.Time`, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Return `true` if we know how to parse values of this type from a string
// without any context.
func IsScalar(typ reflect.Type) bool {
	return LookupParser(typ) != nil
}

// Return a parser for values of type `fieldType`, or `nil` if values of this
// type cannot be built from a string.
//
// The value returned by the parser is convertible to `fieldType`.
func LookupParser(fieldType reflect.Type) *Parser {
	var result *Parser
	switch {
	case fieldType == timeType:
		var p Parser = parseTime
		result = &p
	case fieldType == durationType:
		var p Parser = func(source string) (any, error) {
			return time.ParseDuration(source) //nolint:wrapcheck
		}
		result = &p
	case isEnum(fieldType):
		result = enumParser(fieldType)
	case reflect.PointerTo(fieldType).Implements(textUnmarshalerType):
		var p Parser = func(source string) (any, error) {
			ptr := reflect.New(fieldType)
			unmarshaler, _ := ptr.Interface().(encoding.TextUnmarshaler)
			if err := unmarshaler.UnmarshalText([]byte(source)); err != nil {
				return nil, err //nolint:wrapcheck
			}
			return ptr.Elem().Interface(), nil
		}
		result = &p
	default:
		result = lookupPrimitiveParser(fieldType)
	}
	return result
}

func lookupPrimitiveParser(fieldType reflect.Type) *Parser {
	var p Parser
	switch fieldType.Kind() {
	case reflect.Bool:
		p = parseBool
	case reflect.Float32:
		p = func(source string) (any, error) {
			return strconv.ParseFloat(source, 32) //nolint:wrapcheck
		}
	case reflect.Float64:
		p = func(source string) (any, error) {
			return strconv.ParseFloat(source, 64) //nolint:wrapcheck
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits := fieldType.Bits()
		p = func(source string) (any, error) {
			return strconv.ParseInt(source, 10, bits) //nolint:wrapcheck
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		bits := fieldType.Bits()
		p = func(source string) (any, error) {
			return strconv.ParseUint(source, 10, bits) //nolint:wrapcheck
		}
	case reflect.String:
		p = func(source string) (any, error) {
			return source, nil
		}
	default:
		return nil
	}
	return &p
}

// Accept `true`/`false` regardless of case, otherwise any integer, nonzero
// meaning `true`.
func parseBool(source string) (any, error) {
	switch {
	case strings.EqualFold(source, "true"):
		return true, nil
	case strings.EqualFold(source, "false"):
		return false, nil
	}
	asInt, err := strconv.ParseInt(source, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("expected true, false or an integer, got %q", source)
	}
	return asInt != 0, nil
}

func parseTime(source string) (any, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, source)
		if err == nil {
			return parsed, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func isEnum(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return false
	}
	return typ.Implements(enumInterface) || reflect.PointerTo(typ).Implements(enumInterface)
}

func enumParser(typ reflect.Type) *Parser {
	enum, ok := reflect.New(typ).Interface().(Enum)
	if !ok {
		return nil
	}

	// Key members by their case-folded name, once.
	folder := cases.Fold()
	members := make(map[string]int64)
	for name, value := range enum.EnumMembers() {
		members[folder.String(name)] = value
	}
	var p Parser = func(source string) (any, error) {
		// A Caser is stateful, don't share it between goroutines.
		value, ok := members[cases.Fold().String(source)]
		if !ok {
			return nil, fmt.Errorf("%q is not a member of %s", source, typ.Name())
		}
		return value, nil
	}
	return &p
}
