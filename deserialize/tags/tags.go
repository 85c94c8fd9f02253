package tags

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pasqal-io/godasse-tree/assertions/initialized"
)

// A representation of the tags for a given field.
type Tags struct {
	tags    map[string][]string
	witness initialized.IsInitialized
}

// A Tags without any entry.
func Empty() Tags {
	return Tags{
		tags:    make(map[string][]string),
		witness: initialized.Make(),
	}
}

// Parse the tag associated to a struct field, following the conventions
// of Go tags.
//
// Values are split on `,` and trimmed, except for tags `item` and
// `position`, which hold a single name.
func Parse(tag reflect.StructTag) (Tags, error) {
	if tag == "" {
		return Empty(), nil
	}
	tags := make(map[string][]string)
	// Adapted from Go's reflect.StructTag.Lookup.
	for tag != "" {
		// Skip leading space.
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}

		// Scan to colon. A space, a quote or a control character is a syntax error.
		i = 0
		for i < len(tag) && tag[i] > ' ' && tag[i] != ':' && tag[i] != '"' && tag[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			// Give up on parsing.
			break
		}
		name := string(tag[:i])
		if name == "" {
			return Tags{}, errors.New("invalid tag with empty name")
		}
		if _, exists := tags[name]; exists {
			return Tags{}, fmt.Errorf("invalid tag, name %s should only be defined once", name)
		}

		tag = tag[i+1:]

		// Scan quoted string to find value.
		i = 1
		for i < len(tag) && tag[i] != '"' {
			if tag[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(tag) {
			break
		}
		qvalue := string(tag[:i+1])
		tag = tag[i+1:]

		list, err := strconv.Unquote(qvalue)
		if err != nil {
			return Tags{}, fmt.Errorf("ill-formed tag %s:\n\t * %w", name, err)
		}

		switch name {
		case ItemTag, PositionTag:
			tags[name] = []string{strings.TrimSpace(list)}
		default:
			split := strings.Split(list, ",")
			trimmed := make([]string, 0, len(split))
			for _, s := range split {
				trimmed = append(trimmed, strings.TrimSpace(s))
			}
			tags[name] = trimmed
		}
	}
	return Tags{
		tags:    tags,
		witness: initialized.Make(),
	}, nil
}

const (
	// The tag overriding the name of items in an array-wrapped collection.
	ItemTag = "item"

	// The tag naming the field that receives the position of the node
	// mapped to this field.
	PositionTag = "position"
)

// The content of the main tag of a field, e.g. `xml:"name,attr"`.
type Mapping struct {
	// The name part, possibly empty.
	Name string

	// Flags following the name, e.g. `attr`, `any`.
	Flags []string
}

// Return `true` if the mapping carries the given flag.
func (m Mapping) Has(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Return the mapping declared with tag `key` (e.g. "xml"), if any.
func (tags Tags) Mapping(key string) (Mapping, bool) {
	tags.witness.Assert()
	result, ok := tags.tags[key]
	if !ok || len(result) == 0 {
		return Mapping{}, false
	}
	flags := make([]string, 0, len(result)-1)
	for _, flag := range result[1:] {
		if flag != "" {
			flags = append(flags, flag)
		}
	}
	return Mapping{
		Name:  result[0],
		Flags: flags,
	}, true
}

// Return the name of array items declared with tag `item`, if any.
func (tags Tags) ItemName() *string {
	tags.witness.Assert()
	result, ok := tags.tags[ItemTag]
	if !ok || len(result) == 0 || result[0] == "" {
		return nil
	}
	return &result[0]
}

// Return the name of the field receiving positions, declared with
// tag `position`, if any.
func (tags Tags) PositionSink() *string {
	tags.witness.Assert()
	result, ok := tags.tags[PositionTag]
	if !ok || len(result) == 0 || result[0] == "" {
		return nil
	}
	return &result[0]
}

// Lookup a key.
func (tags Tags) Lookup(key string) ([]string, bool) {
	tags.witness.Assert()
	result, ok := tags.tags[key]
	return result, ok
}
