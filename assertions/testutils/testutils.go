package testutils

import (
	"fmt"
	"reflect"
	"regexp"
	"testing"

	"github.com/pasqal-io/godasse-tree/deserialize/tree"
	"github.com/pasqal-io/godasse-tree/deserialize/xml"
)

// Fail if two values are different.
//
// Does not stop the test.
func AssertEqual[T comparable](t *testing.T, actual, expected T, explanation string) {
	t.Helper()
	if expected != actual {
		t.Errorf("got: %+v; want: %+v (%s)", actual, expected, explanation)
		if reflect.ValueOf(expected).Kind() == reflect.Pointer {
			t.Error("Warning: you're comparing two pointers -- pointers are only equal if they point to the same physical object")
		}
	}
}

func AssertEqualArrays[T comparable](t *testing.T, actual, expected []T, explanation string) {
	t.Helper()
	AssertEqual(t, len(actual), len(expected), fmt.Sprintf("%s - invalid length", explanation))
	for i := 0; i < len(actual) && i < len(expected); i++ {
		AssertEqual(t, actual[i], expected[i], fmt.Sprintf("%s - invalid item %d", explanation, i))
	}
}

func AssertRegexp(t *testing.T, actual string, pattern regexp.Regexp, explanation string) {
	t.Helper()
	if pattern.FindStringIndex(actual) != nil {
		return
	}
	t.Errorf("got: %+v; expected: %+v (%s)", actual, pattern, explanation)
}

// Fail if `node` is not at the given line and column.
func AssertPosition(t *testing.T, actual tree.Position, line int, column int, explanation string) {
	t.Helper()
	AssertEqual(t, actual, tree.Position{Line: line, Column: column}, explanation)
}

// Parse an XML document, stopping the test if it is malformed.
func ParseXML(t *testing.T, source string) tree.Node {
	t.Helper()
	root, err := xml.Driver{}.Parse([]byte(source)) //nolint:exhaustruct
	if err != nil {
		t.Fatalf("invalid test document: %s", err)
	}
	return root
}
