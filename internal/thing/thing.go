package thing

import (
	"fmt"
	"time"
)

// WebThingContext is the JSON-LD context advertised in thing descriptions.
const WebThingContext = "https://webthings.io/schemas"

// Event describes one committed property value.
type Event struct {
	ThingID  string    `json:"thing_id"`
	Property string    `json:"property"`
	Value    float64   `json:"value"`
	Time     time.Time `json:"time"`
}

// Notifier receives property change events.
// Implementations must not block; Notify is called from update loops and
// request handlers after the write lock has been released.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ev Event)

// Notify calls f(ev).
func (f NotifierFunc) Notify(ev Event) {
	f(ev)
}

// Thing is a named entity owning an ordered set of properties.
//
// Identity fields are fixed at construction. The property set and values
// are mutated only through a Handle.
type Thing struct {
	id          string
	title       string
	types       []string
	description string

	props map[string]*Property
	order []string

	notifier Notifier
	now      func() time.Time
}

// New creates a thing with no properties.
func New(id, title string, types []string, description string) *Thing {
	return &Thing{
		id:          id,
		title:       title,
		types:       append([]string(nil), types...),
		description: description,
		props:       make(map[string]*Property),
		now:         time.Now,
	}
}

// SetNotifier sets the change-event receiver.
// Call before the thing is wrapped in a Handle.
func (t *Thing) SetNotifier(n Notifier) {
	t.notifier = n
}

// ID returns the thing identifier.
func (t *Thing) ID() string { return t.id }

// Title returns the human-readable name.
func (t *Thing) Title() string { return t.title }

// Types returns a copy of the semantic capability types.
func (t *Thing) Types() []string { return append([]string(nil), t.types...) }

// DescriptionText returns the free-text description.
func (t *Thing) DescriptionText() string { return t.description }

// AddProperty appends p to the thing. Names are unique within a thing.
func (t *Thing) AddProperty(p *Property) error {
	if p == nil {
		return fmt.Errorf("thing %s: nil property", t.id)
	}
	if _, exists := t.props[p.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, p.name)
	}
	t.props[p.name] = p
	t.order = append(t.order, p.name)
	return nil
}

// RemoveProperty deletes the named property. It reports whether the
// property existed.
func (t *Thing) RemoveProperty(name string) bool {
	if _, exists := t.props[name]; !exists {
		return false
	}
	delete(t.props, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// FindProperty looks up a property by name.
func (t *Thing) FindProperty(name string) (*Property, bool) {
	p, ok := t.props[name]
	return p, ok
}

// Properties returns the properties in insertion order.
func (t *Thing) Properties() []*Property {
	out := make([]*Property, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.props[name])
	}
	return out
}

// PropertyValues returns a snapshot of every cached value keyed by name.
func (t *Thing) PropertyValues() map[string]float64 {
	out := make(map[string]float64, len(t.props))
	for name, p := range t.props {
		out[name] = p.value
	}
	return out
}

// Notify emits a change event for the named property. It does nothing
// when no notifier is set.
func (t *Thing) Notify(name string, value float64) {
	if t.notifier == nil {
		return
	}
	t.notifier.Notify(Event{
		ThingID:  t.id,
		Property: name,
		Value:    value,
		Time:     t.now().UTC(),
	})
}

// PropertyDescription is a property schema plus its current value.
type PropertyDescription struct {
	Schema
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Description is the serialisable description of a thing.
type Description struct {
	Context     string                `json:"@context"`
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Types       []string              `json:"@type"`
	Description string                `json:"description,omitempty"`
	Properties  []PropertyDescription `json:"properties"`
}

// Describe builds a Description snapshot. Properties keep insertion order.
func (t *Thing) Describe() Description {
	desc := Description{
		Context:     WebThingContext,
		ID:          t.id,
		Title:       t.title,
		Types:       t.Types(),
		Description: t.description,
		Properties:  make([]PropertyDescription, 0, len(t.order)),
	}
	for _, p := range t.Properties() {
		desc.Properties = append(desc.Properties, PropertyDescription{
			Schema: p.Schema(),
			Name:   p.name,
			Value:  p.value,
		})
	}
	return desc
}
