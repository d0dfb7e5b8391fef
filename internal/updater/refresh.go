package updater

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-things/internal/action"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// RefreshActionName is the action that forces an immediate update cycle.
const RefreshActionName = "refresh"

// RefreshFactory returns an action factory that runs one cycle of every
// loop bound to the target thing. Things without loops reject the action.
func RefreshFactory(loops []*Loop) action.Factory {
	byThing := make(map[string][]*Loop)
	for _, l := range loops {
		byThing[l.thingID] = append(byThing[l.thingID], l)
	}
	return func(id string, h *thing.Handle, input action.Input) (action.Action, bool) {
		bound := byThing[h.ID()]
		if len(bound) == 0 {
			return nil, false
		}
		return &refreshAction{
			Base:  action.NewBase(id, RefreshActionName, h.ID(), input),
			loops: bound,
		}, true
	}
}

type refreshAction struct {
	action.Base
	loops []*Loop
}

// Perform runs the cycles in order and joins their errors.
func (a *refreshAction) Perform(ctx context.Context) error {
	var errs []error
	for _, l := range a.loops {
		if err := l.RunCycle(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
