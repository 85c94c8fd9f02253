package schema

import (
	"errors"
	"fmt"
)

// A type that declares its schema explicitly instead of using struct tags.
//
//	func (*Thing) DeclareSchema(d *schema.Declaration) {
//	    d.Attribute("ID", "id").
//	        Element("Name", "name").WithPosition("NamePos").
//	        AnyElements("Extra")
//	}
//
// Fields are designated by their Go name. The declaration is checked when
// the schema is discovered, exactly like tags.
type Declarer interface {
	DeclareSchema(*Declaration)
}

// An explicit list of roles for the fields of a type.
type Declaration struct {
	entries []declared
	errs    []error
}

type declared struct {
	field string

	// Zero for the whole-node position sink.
	role Role

	name string
	item string
	sink string
}

// Map field `field` to attribute `name`, or to an attribute named after
// the field if `name` is empty.
func (d *Declaration) Attribute(field string, name string) *Declaration {
	return d.add(declared{field: field, role: RoleAttribute, name: name}) //nolint:exhaustruct
}

// Map field `field` to child element `name`, or to a child element named
// after the field if `name` is empty.
func (d *Declaration) Element(field string, name string) *Declaration {
	return d.add(declared{field: field, role: RoleElement, name: name}) //nolint:exhaustruct
}

// Map collection field `field` to the children of wrapper element
// `wrapper`, each of which must be named `item`.
//
// If `wrapper` is empty, the field name is used. If `item` is empty, the
// name of the item type is used.
func (d *Declaration) Array(field string, wrapper string, item string) *Declaration {
	return d.add(declared{field: field, role: RoleArray, name: wrapper, item: item}) //nolint:exhaustruct
}

// Map field `field` to the trimmed text of the node.
func (d *Declaration) Text(field string) *Declaration {
	return d.add(declared{field: field, role: RoleText}) //nolint:exhaustruct
}

// Collect unmatched attributes into field `field`.
func (d *Declaration) AnyAttributes(field string) *Declaration {
	return d.add(declared{field: field, role: RoleAnyAttributes}) //nolint:exhaustruct
}

// Collect unmatched child elements into field `field`.
func (d *Declaration) AnyElements(field string) *Declaration {
	return d.add(declared{field: field, role: RoleAnyElements}) //nolint:exhaustruct
}

// Write the position of the node itself into field `field`.
func (d *Declaration) NodePosition(field string) *Declaration {
	return d.add(declared{field: field}) //nolint:exhaustruct
}

// Write the position of the node filling the previously declared role
// into field `sink`.
func (d *Declaration) WithPosition(sink string) *Declaration {
	if len(d.entries) == 0 || d.entries[len(d.entries)-1].role == 0 {
		d.errs = append(d.errs, fmt.Errorf("WithPosition(%q) must follow the declaration of a role", sink))
		return d
	}
	d.entries[len(d.entries)-1].sink = sink
	return d
}

func (d *Declaration) add(entry declared) *Declaration {
	if entry.field == "" {
		d.errs = append(d.errs, errors.New("cannot declare a role without a field name"))
		return d
	}
	d.entries = append(d.entries, entry)
	return d
}
