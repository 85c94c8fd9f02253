package shared

import (
	"errors"
	"fmt"

	"github.com/pasqal-io/godasse-tree/deserialize/tree"
)

// The input could not be turned into a tree, e.g. it is empty, malformed
// or too deep.
type InputError struct {
	// Where the problem was detected, if known.
	Position tree.Position

	// Human-readable reason.
	Reason string

	// The underlying parser error, if any.
	Cause error
}

func (e *InputError) Error() string {
	msg := e.Reason
	if !e.Position.IsZero() {
		msg = fmt.Sprintf("%s at %s", msg, e.Position)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s:\n\t * %s", msg, e.Cause)
	}
	return msg
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// Whether an unexpected node is an attribute or an element.
type NodeKind int

const (
	NodeElement NodeKind = iota
	NodeAttribute
)

func (k NodeKind) String() string {
	if k == NodeAttribute {
		return "attribute"
	}
	return "element"
}

// A node of the document has no place in the schema.
//
// This covers both attributes and elements for which no role and no
// wildcard bag exist and, when `Cause` is set, mapped nodes whose value
// cannot be parsed into the declared type.
type UnexpectedNodeError struct {
	Name     string
	Kind     NodeKind
	Position tree.Position

	// The human-readable path to the node, e.g. `Thing.name`.
	Path string

	// If non-nil, the node was mapped but its value was rejected.
	Cause error
}

func (e *UnexpectedNodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("at %s, invalid value for %s %q at %s:\n\t * %s", e.Path, e.Kind, e.Name, e.Position, e.Cause)
	}
	return fmt.Sprintf("at %s, unexpected %s %q at %s", e.Path, e.Kind, e.Name, e.Position)
}

func (e *UnexpectedNodeError) Unwrap() error {
	return e.Cause
}

// The declared schema of a type is inconsistent.
type SchemaError struct {
	// The name of the offending type.
	Type string

	// The offending Go field, if any.
	Field string

	Description string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid schema for %s: %s", e.Type, e.Description)
	}
	return fmt.Sprintf("invalid schema for %s.%s: %s", e.Type, e.Field, e.Description)
}

// A state the deserializer considers unreachable.
type InternalError struct {
	Description string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Description
}

// Return `true` if `err` was caused by the document (as opposed to the
// declared schema).
func IsDocumentError(err error) bool {
	var input *InputError
	var unexpected *UnexpectedNodeError
	return errors.As(err, &input) || errors.As(err, &unexpected)
}

// Return `true` if `err` was caused by an inconsistent schema declaration.
func IsSchemaError(err error) bool {
	var schema *SchemaError
	return errors.As(err, &schema)
}
