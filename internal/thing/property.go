package thing

import "math"

// Schema value types.
const (
	TypeNumber  = "number"
	TypeInteger = "integer"
)

// Schema is the immutable metadata describing a property.
// Its JSON form follows the Web Thing property description.
type Schema struct {
	SemanticType string   `json:"@type,omitempty"`
	Title        string   `json:"title,omitempty"`
	Type         string   `json:"type"`
	Description  string   `json:"description,omitempty"`
	Minimum      *float64 `json:"minimum,omitempty"`
	Maximum      *float64 `json:"maximum,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	ReadOnly     bool     `json:"readOnly"`
}

// clone returns a copy that shares no pointers with s.
func (s Schema) clone() Schema {
	c := s
	if s.Minimum != nil {
		v := *s.Minimum
		c.Minimum = &v
	}
	if s.Maximum != nil {
		v := *s.Maximum
		c.Maximum = &v
	}
	if c.Type == "" {
		c.Type = TypeNumber
	}
	return c
}

// Clamp limits v to the declared [Minimum, Maximum] range.
// Missing bounds leave that side open.
func (s Schema) Clamp(v float64) float64 {
	if s.Minimum != nil && v < *s.Minimum {
		return *s.Minimum
	}
	if s.Maximum != nil && v > *s.Maximum {
		return *s.Maximum
	}
	return v
}

// InRange reports whether v satisfies the declared bounds.
func (s Schema) InRange(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return s.Clamp(v) == v
}

// Property is a single named value with cached state and schema metadata.
//
// A Property is not synchronised on its own. It belongs to a Thing and is
// only touched inside Handle.Read or Handle.Write callbacks.
type Property struct {
	name   string
	schema Schema
	value  float64
}

// NewProperty creates a property with an initial cached value.
// The schema is copied; later changes to the caller's Schema have no effect.
func NewProperty(name string, initial float64, schema Schema) *Property {
	return &Property{
		name:   name,
		schema: schema.clone(),
		value:  initial,
	}
}

// Name returns the property name.
func (p *Property) Name() string {
	return p.name
}

// Schema returns a copy of the property schema.
func (p *Property) Schema() Schema {
	return p.schema.clone()
}

// ReadOnly reports whether external writes are rejected.
func (p *Property) ReadOnly() bool {
	return p.schema.ReadOnly
}

// Value returns the cached value.
func (p *Property) Value() float64 {
	return p.value
}

// SetCachedValue stores v and returns the previous value.
// This is the producer path: it ignores the read-only flag because the
// update loop is the authoritative source for sensor-backed properties.
func (p *Property) SetCachedValue(v float64) float64 {
	prev := p.value
	p.value = v
	return prev
}

// Write is the external write path. It fails with ErrReadOnly for
// read-only properties and leaves the value unchanged.
func (p *Property) Write(v float64) (float64, error) {
	if p.schema.ReadOnly {
		return p.value, ErrReadOnly
	}
	return p.SetCachedValue(v), nil
}
