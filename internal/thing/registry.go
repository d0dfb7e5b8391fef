package thing

import "fmt"

// Mode is the exposition mode of a Registry.
type Mode int

const (
	// ModeSingle exposes exactly one thing at the root.
	ModeSingle Mode = iota + 1
	// ModeMultiple exposes a named collection of things.
	ModeMultiple
)

// String returns the configuration spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeMultiple:
		return "multiple"
	default:
		return "unknown"
	}
}

// Registry is the fixed set of exposed things.
//
// The mode, name and membership are decided at construction and never
// change, so a Registry is safe for concurrent use without locking.
type Registry struct {
	mode    Mode
	name    string
	handles []*Handle
	byID    map[string]*Handle
}

// NewSingle creates a registry exposing one thing. The registry name is
// the thing's title.
func NewSingle(h *Handle) (*Registry, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: single mode requires a thing", ErrInvalidRegistry)
	}
	return &Registry{
		mode:    ModeSingle,
		name:    h.thing.title,
		handles: []*Handle{h},
		byID:    map[string]*Handle{h.id: h},
	}, nil
}

// NewMultiple creates a registry exposing handles under a collection name.
// Things enumerate in the order given.
func NewMultiple(name string, handles ...*Handle) (*Registry, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: multiple mode requires a name", ErrInvalidRegistry)
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("%w: multiple mode requires at least one thing", ErrInvalidRegistry)
	}

	r := &Registry{
		mode:    ModeMultiple,
		name:    name,
		handles: make([]*Handle, 0, len(handles)),
		byID:    make(map[string]*Handle, len(handles)),
	}
	for _, h := range handles {
		if h == nil {
			return nil, fmt.Errorf("%w: nil thing", ErrInvalidRegistry)
		}
		if _, exists := r.byID[h.id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateThing, h.id)
		}
		r.byID[h.id] = h
		r.handles = append(r.handles, h)
	}
	return r, nil
}

// Mode returns the exposition mode.
func (r *Registry) Mode() Mode { return r.mode }

// Name returns the collection name, or the thing title in single mode.
func (r *Registry) Name() string { return r.name }

// Len returns the number of exposed things.
func (r *Registry) Len() int { return len(r.handles) }

// Things returns the handles in registration order.
func (r *Registry) Things() []*Handle {
	return append([]*Handle(nil), r.handles...)
}

// Thing looks up a handle by thing ID.
func (r *Registry) Thing(id string) (*Handle, error) {
	h, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThingNotFound, id)
	}
	return h, nil
}
