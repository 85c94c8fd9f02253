package schema

import (
	"fmt"
	"reflect"

	"github.com/pasqal-io/godasse-tree/deserialize/tree"
)

type sinkMode int

const (
	sinkValue sinkMode = iota
	sinkPointer
	sinkSlice
)

// A field receiving source positions.
//
// It may be a `tree.Position` or a `*tree.Position`, overwritten by every
// write, or a `[]tree.Position`, receiving one entry per write.
type Sink struct {
	// The name of the Go field.
	GoName string

	index []int
	mode  sinkMode
}

// Resolve field `name` of struct `owner` as a position sink.
func newSink(owner reflect.Type, name string) (*Sink, error) {
	field, ok := owner.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("position field %s does not exist", name)
	}
	if !field.IsExported() {
		return nil, fmt.Errorf("position field %s is not public", name)
	}
	// `FieldByIndex` cannot traverse nil pointers to embedded structs.
	current := owner
	for _, i := range field.Index[:len(field.Index)-1] {
		current = current.Field(i).Type
		if current.Kind() == reflect.Pointer {
			return nil, fmt.Errorf("position field %s is promoted through a pointer", name)
		}
	}

	var mode sinkMode
	switch field.Type {
	case positionType:
		mode = sinkValue
	case reflect.PointerTo(positionType):
		mode = sinkPointer
	case reflect.SliceOf(positionType):
		mode = sinkSlice
	default:
		return nil, fmt.Errorf("position field %s must be a tree.Position, *tree.Position or []tree.Position, got %s", name, field.Type)
	}
	return &Sink{
		GoName: name,
		index:  field.Index,
		mode:   mode,
	}, nil
}

// Write `position` into this field of `owner`.
//
// `owner` must be addressable.
func (s *Sink) Write(owner reflect.Value, position tree.Position) {
	slot := owner.FieldByIndex(s.index)
	switch s.mode {
	case sinkValue:
		slot.Set(reflect.ValueOf(position))
	case sinkPointer:
		copied := position
		slot.Set(reflect.ValueOf(&copied))
	case sinkSlice:
		slot.Set(reflect.Append(slot, reflect.ValueOf(position)))
	}
}
