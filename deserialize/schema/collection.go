package schema

import (
	"reflect"

	"github.com/pasqal-io/godasse-tree/deserialize/shared"
	"github.com/pasqal-io/godasse-tree/validation"
)

// A collection type that is not a slice must implement `Appender` on its
// pointer type, e.g.
//
//	type Names struct{ sorted []string }
//
//	func (n *Names) Append(name string) {
//	    n.sorted = insertSorted(n.sorted, name)
//	}
//
// `Append` may also return an `error`, in which case deserialization stops
// with that error.
type Appender[T any] interface {
	Append(T)
}

const appendMethod = "Append"

type collectionMode int

const (
	// `[]T`.
	collectionSlice collectionMode = iota

	// `C`, where `*C` has an `Append` method.
	collectionValue

	// `*C`, where `*C` has an `Append` method. Allocated on first append.
	collectionPointer
)

// How to append items to a collection field.
type Collection struct {
	typ    reflect.Type
	mode   collectionMode
	method int

	// If the collection is allocated on first append, whether it needs
	// to be initialized.
	initialize bool
}

var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

// The `Initializer` of a collection failed while allocating it.
type InitializationError struct {
	Wrapped error
}

func (e InitializationError) Error() string {
	return e.Wrapped.Error()
}

func (e InitializationError) Unwrap() error {
	return e.Wrapped
}

// If `typ` is a collection, return how to append to it and the type of
// its items. Otherwise, return `nil`.
func collectionOf(typ reflect.Type) (*Collection, reflect.Type) {
	if typ.Kind() == reflect.Slice && !shared.IsScalar(typ) {
		return &Collection{typ: typ, mode: collectionSlice}, typ.Elem() //nolint:exhaustruct
	}
	if typ.Kind() != reflect.Pointer {
		if method, ok := appenderMethod(reflect.PointerTo(typ)); ok {
			return &Collection{typ: typ, mode: collectionValue, method: method.Index}, method.Type.In(1) //nolint:exhaustruct
		}
		return nil, nil
	}
	if typ.Elem().Kind() == reflect.Pointer {
		return nil, nil
	}
	if method, ok := appenderMethod(typ); ok {
		initialize, _ := canInterface(typ.Elem(), initializerInterface)
		return &Collection{
			typ:        typ,
			mode:       collectionPointer,
			method:     method.Index,
			initialize: initialize,
		}, method.Type.In(1)
	}
	return nil, nil
}

// Find a method `Append(T)` or `Append(T) error` on `ptrType`.
func appenderMethod(ptrType reflect.Type) (reflect.Method, bool) {
	method, ok := ptrType.MethodByName(appendMethod)
	if !ok {
		return reflect.Method{}, false //nolint:exhaustruct
	}
	// `In(0)` is the receiver.
	typ := method.Type
	if typ.NumIn() != 2 || typ.IsVariadic() { //nolint:mnd
		return reflect.Method{}, false //nolint:exhaustruct
	}
	switch {
	case typ.NumOut() == 0:
	case typ.NumOut() == 1 && typ.Out(0) == errorInterface:
	default:
		return reflect.Method{}, false //nolint:exhaustruct
	}
	return method, true
}

// Append `item` to the collection stored in `slot`.
//
// `slot` must be addressable.
func (c *Collection) Append(slot reflect.Value, item reflect.Value) error {
	var method reflect.Value
	switch c.mode {
	case collectionSlice:
		slot.Set(reflect.Append(slot, item))
		return nil
	case collectionValue:
		method = slot.Addr().Method(c.method)
	case collectionPointer:
		if slot.IsNil() {
			fresh := reflect.New(c.typ.Elem())
			if c.initialize {
				if initializer, ok := fresh.Interface().(validation.Initializer); ok {
					if err := initializer.Initialize(); err != nil {
						return InitializationError{Wrapped: err}
					}
				}
			}
			slot.Set(fresh)
		}
		method = slot.Method(c.method)
	default:
		return &shared.InternalError{Description: "unknown collection mode"}
	}
	out := method.Call([]reflect.Value{item})
	if len(out) == 1 && !out[0].IsNil() {
		err, _ := out[0].Interface().(error)
		return err
	}
	return nil
}
