// Package index holds the descriptor of a searchable index as read from the
// backend mapping metadata. A descriptor is a point-in-time snapshot: the live
// mapping may change after it was read, and callers must treat it accordingly.
package index

import (
	"github.com/docdex-io/docdex/internal/domain/index/field"
)

// Descriptor identifies a searchable index and its classified fields.
type Descriptor struct {
	name   string
	fields []field.Descriptor
}

// New creates a Descriptor.
func New(name string, fields []field.Descriptor) Descriptor {
	return Descriptor{name: name, fields: fields}
}

// Name returns the index name.
func (d Descriptor) Name() string { return d.name }

// Fields returns all classified field descriptors.
func (d Descriptor) Fields() []field.Descriptor { return d.fields }

// FieldByName looks up a field descriptor by name.
func (d Descriptor) FieldByName(name string) (field.Descriptor, bool) {
	for _, f := range d.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Descriptor{}, false
}

// FieldsByRole returns the names of all fields with the given role, in mapping order.
func (d Descriptor) FieldsByRole(role field.Role) []string {
	var names []string
	for _, f := range d.fields {
		if f.Role() == role {
			names = append(names, f.Name())
		}
	}
	return names
}
