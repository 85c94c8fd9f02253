// Mechanisms to deal with initialization and validation of values.
//
// These interfaces are primarily designed to be implemented by
// deserialization targets.
package validation

import "fmt"

// A type that supports initialization.
//
// The deserializer calls `Initialize()` on every value it constructs,
// at every depth of the tree, **before** populating it from its node.
// This is the place to set defaults for fields that the document may
// leave out, including collections that need to be allocated.
//
// Important: We expect `Initializer` to be implemented on **pointers**,
// rather than on structs.
//
// Otherwise, all its operations are performed on a copy of the struct and
// the result is lost immediately.
type Initializer interface {
	// Setup the contents of the struct.
	Initialize() error
}

// A type that supports validation.
//
// The deserializer calls `Validate()` on every value it constructs,
// at every depth of the tree, **after** populating it from its node.
//
// Important: We expect `Validator` to be implemented on **pointers**,
// rather than on structs.
//
// This lets `Validate()` perform any necessary changes to the data
// structure. In particular, if necessary, it may be used to populate
// private fields from the contents of public fields.
type Validator interface {
	// Confirm that the data is valid.
	//
	// Return an error if it is invalid.
	//
	// If necessary, this method may alter the contents of the struct.
	Validate() error
}

// An error returned by a `Validator`, decorated with the path of the node
// that was being validated.
type Error struct {
	Path    string
	Wrapped error
}

func (e Error) Error() string {
	return fmt.Sprintf("at %s, validation failed:\n\t * %s", e.Path, e.Wrapped)
}

func (e Error) Unwrap() error {
	return e.Wrapped
}

// Wrap an error returned by a `Validator`.
func WrapError(path string, err error) Error {
	return Error{
		Path:    path,
		Wrapped: err,
	}
}
