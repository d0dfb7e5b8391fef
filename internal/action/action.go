package action

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// Input is the decoded JSON object carried by an action request.
// A nil Input means the request had no input.
type Input map[string]any

// Action is one requested invocation.
type Action interface {
	ID() string
	Name() string
	ThingID() string
	Input() Input
	Perform(ctx context.Context) error
}

// Generator produces an Action for a thing and action name, or reports
// that the name is not recognised.
type Generator interface {
	Generate(h *thing.Handle, name string, input Input) (Action, bool)
}

// NoActions recognises no actions.
type NoActions struct{}

// Generate always reports false.
func (NoActions) Generate(*thing.Handle, string, Input) (Action, bool) {
	return nil, false
}

// Factory builds an action of one kind. Returning false rejects the request
// (for example when the thing does not support the kind).
type Factory func(id string, h *thing.Handle, input Input) (Action, bool)

// Registry is a Generator backed by named factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	newID     func() string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		newID:     func() string { return uuid.NewString() },
	}
}

// Register adds a kind.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, name)
	}
	r.factories[name] = f
	return nil
}

// Names returns the registered kinds in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate looks up the named factory and builds an action with a fresh ID.
func (r *Registry) Generate(h *thing.Handle, name string, input Input) (Action, bool) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok || h == nil {
		return nil, false
	}
	return f(r.newID(), h, input)
}

// Base carries the identity fields of an action. Kinds embed it and add
// Perform.
type Base struct {
	id      string
	name    string
	thingID string
	input   Input
}

// NewBase creates the identity part of an action.
func NewBase(id, name, thingID string, input Input) Base {
	return Base{id: id, name: name, thingID: thingID, input: input}
}

// ID returns the request identifier.
func (b Base) ID() string { return b.id }

// Name returns the action name.
func (b Base) Name() string { return b.name }

// ThingID returns the target thing.
func (b Base) ThingID() string { return b.thingID }

// Input returns the request input.
func (b Base) Input() Input { return b.input }
