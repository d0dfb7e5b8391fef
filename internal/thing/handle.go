package thing

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Handle is the shared, synchronised reference to one Thing.
//
// Any number of Read callbacks may run concurrently; a Write callback runs
// alone. Every holder of a Handle observes the same Thing.
//
// If a Write callback panics the Handle is poisoned: the panic continues to
// unwind, and from then on every Read and Write returns ErrLockPoisoned.
type Handle struct {
	mu       sync.RWMutex
	thing    *Thing
	id       string
	poisoned atomic.Bool
}

// NewHandle wraps t for sharing. The caller must not use t directly afterwards.
func NewHandle(t *Thing) *Handle {
	return &Handle{thing: t, id: t.id}
}

// ID returns the wrapped thing's identifier. It needs no lock because
// identity is fixed at construction.
func (h *Handle) ID() string {
	return h.id
}

// Poisoned reports whether a writer panicked while holding the lock.
func (h *Handle) Poisoned() bool {
	return h.poisoned.Load()
}

// Read runs fn with shared access to the thing.
func (h *Handle) Read(fn func(t *Thing) error) error {
	if h.poisoned.Load() {
		return ErrLockPoisoned
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.poisoned.Load() {
		return ErrLockPoisoned
	}
	return fn(h.thing)
}

// Write runs fn with exclusive access to the thing.
// Keep fn short: readers are blocked until it returns.
func (h *Handle) Write(fn func(t *Thing) error) error {
	if h.poisoned.Load() {
		return ErrLockPoisoned
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.poisoned.Load() {
		return ErrLockPoisoned
	}

	completed := false
	defer func() {
		if !completed {
			h.poisoned.Store(true)
		}
	}()
	err := fn(h.thing)
	completed = true
	return err
}

// Set stores v as the cached value of the named property without notifying.
// This is the producer path, so read-only properties are accepted. The
// exclusive lock covers only the lookup and the assignment.
//
// Returns the previous value.
func (h *Handle) Set(name string, v float64) (float64, error) {
	var prev float64
	err := h.Write(func(t *Thing) error {
		p, ok := t.props[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
		}
		prev = p.SetCachedValue(v)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return prev, nil
}

// Notify emits a change event for the named property. It must not be
// called from inside a Read or Write callback.
func (h *Handle) Notify(name string, v float64) {
	h.thing.Notify(name, v)
}

// Commit is Set followed by Notify once the lock is released.
func (h *Handle) Commit(name string, v float64) (float64, error) {
	prev, err := h.Set(name, v)
	if err != nil {
		return 0, err
	}
	h.Notify(name, v)
	return prev, nil
}

// WriteProperty is the external write path. It fails with ErrReadOnly for
// read-only properties. Values outside the schema bounds are clamped.
//
// Returns the value actually stored.
func (h *Handle) WriteProperty(name string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidValue
	}
	var stored float64
	err := h.Write(func(t *Thing) error {
		p, ok := t.props[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
		}
		stored = p.schema.Clamp(v)
		_, err := p.Write(stored)
		return err
	})
	if err != nil {
		return 0, err
	}
	h.thing.Notify(name, stored)
	return stored, nil
}

// PropertyValue returns the cached value of the named property.
func (h *Handle) PropertyValue(name string) (float64, error) {
	var v float64
	err := h.Read(func(t *Thing) error {
		p, ok := t.props[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
		}
		v = p.value
		return nil
	})
	return v, err
}

// PropertySchema returns the schema of the named property.
func (h *Handle) PropertySchema(name string) (Schema, error) {
	var s Schema
	err := h.Read(func(t *Thing) error {
		p, ok := t.props[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
		}
		s = p.Schema()
		return nil
	})
	return s, err
}

// Describe returns a consistent description snapshot.
func (h *Handle) Describe() (Description, error) {
	var d Description
	err := h.Read(func(t *Thing) error {
		d = t.Describe()
		return nil
	})
	return d, err
}
