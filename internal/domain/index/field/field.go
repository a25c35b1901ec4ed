package field

import "fmt"

// Role is the inferred function of a mapped field. Inferred, not authoritative:
// a caller may still select an unknown field manually.
type Role string

// Field role constants.
const (
	// Text is an analyzed full-text field, a candidate for keyword search.
	Text Role = "text"
	// Vector is a dense numeric field usable for similarity search.
	Vector   Role = "vector"
	Metadata Role = "metadata"
	Unknown  Role = "unknown"
)

// Backend mapping types recognized by the classifier.
const (
	typeText      = "text"
	typeKNNVector = "knn_vector"
	typeKeyword   = "keyword"
	typeDate      = "date"
	typeBoolean   = "boolean"
)

var numericScalarTypes = map[string]bool{
	"long": true, "integer": true, "short": true, "byte": true,
	"double": true, "float": true, "half_float": true, "scaled_float": true,
}

// Descriptor is an immutable value object describing one mapped index field.
type Descriptor struct {
	name         string
	declaredType string
	role         Role
	dimension    int
}

// New validates and creates a Descriptor. Dimension is only meaningful for the
// vector role and must be positive there.
func New(name, declaredType string, role Role, dimension int) (Descriptor, error) {
	if name == "" {
		return Descriptor{}, fmt.Errorf("field name is required")
	}
	switch role {
	case Text, Metadata, Unknown:
		if dimension != 0 {
			return Descriptor{}, fmt.Errorf("field %q: dimension is only valid for vector fields", name)
		}
	case Vector:
		if dimension <= 0 {
			return Descriptor{}, fmt.Errorf("field %q: vector field requires a positive dimension", name)
		}
	default:
		return Descriptor{}, fmt.Errorf("field %q: invalid role %q", name, role)
	}
	return Descriptor{name: name, declaredType: declaredType, role: role, dimension: dimension}, nil
}

// Classify applies the mapping classification rules in priority order:
// dense-vector type with a declared dimension, then analyzed text, then
// exact-match / scalar / date metadata. Anything else stays Unknown.
func Classify(declaredType string, dimension int) Role {
	switch {
	case declaredType == typeKNNVector && dimension > 0:
		return Vector
	case declaredType == typeText:
		return Text
	case declaredType == typeKeyword,
		declaredType == typeDate,
		declaredType == typeBoolean,
		numericScalarTypes[declaredType]:
		return Metadata
	default:
		return Unknown
	}
}

// Name returns the field name.
func (d Descriptor) Name() string { return d.name }

// DeclaredType returns the backend mapping type as declared.
func (d Descriptor) DeclaredType() string { return d.declaredType }

// Role returns the inferred field role.
func (d Descriptor) Role() Role { return d.role }

// Dimension returns the vector dimension (0 for non-vector roles).
func (d Descriptor) Dimension() int { return d.dimension }
