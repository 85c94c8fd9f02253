package initialized

// A witness type used to detect structs that were not built by their
// constructor.
//
// In Go, `new(T)` or `T{}` produce a value that claims to be a `T` without
// offering any of the guarantees that `T`'s constructor establishes. For
// types such as `schema.TypeSchema`, which must only ever be produced by the
// registry after validation, using such a value is a bug.
//
// Operation manual:
// - add a field `witness IsInitialized` in your struct;
// - set it with `initialized.Make()` from your constructor;
// - call `self.witness.Assert()` whenever you access data from your struct.
//
// `Assert` panics on values that bypassed the constructor.
type IsInitialized struct {
	isInitialized bool
}

// Create an `IsInitialized`.
func Make() IsInitialized {
	return IsInitialized{
		isInitialized: true,
	}
}

// Assert that this `IsInitialized` was created by `initialized.Make()`.
//
// Panics otherwise.
func (witness IsInitialized) Assert() {
	if !witness.isInitialized {
		panic("struct was not initialized by its constructor")
	}
}

// Return `true` if this witness was created by `initialized.Make()`.
func (witness IsInitialized) Ok() bool {
	return witness.isInitialized
}
