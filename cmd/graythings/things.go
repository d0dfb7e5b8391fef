package main

import (
	"fmt"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-things/internal/sensor"
	"github.com/nerrad567/gray-logic-things/internal/thing"
	"github.com/nerrad567/gray-logic-things/internal/updater"
)

// buildRegistry creates one handle per configured thing, with n receiving
// every committed change, and groups them per the exposition mode.
func buildRegistry(cfg *config.Config, n thing.Notifier) (*thing.Registry, error) {
	handles := make([]*thing.Handle, 0, len(cfg.Things))
	for _, tc := range cfg.Things {
		t := thing.New(tc.ID, tc.Title, tc.Types, tc.Description)
		t.SetNotifier(n)
		for _, pc := range tc.Properties {
			p := thing.NewProperty(pc.Name, pc.Initial, thing.Schema{
				SemanticType: pc.SemanticType,
				Title:        pc.Title,
				Type:         pc.Type,
				Description:  pc.Description,
				Minimum:      pc.Minimum,
				Maximum:      pc.Maximum,
				Unit:         pc.Unit,
				ReadOnly:     !pc.Writable,
			})
			if err := t.AddProperty(p); err != nil {
				return nil, fmt.Errorf("thing %s: %w", tc.ID, err)
			}
		}
		handles = append(handles, thing.NewHandle(t))
	}

	if cfg.Exposition.Mode == config.ExpositionSingle {
		if len(handles) != 1 {
			return nil, fmt.Errorf("%w: single mode needs exactly one thing", thing.ErrInvalidRegistry)
		}
		return thing.NewSingle(handles[0])
	}
	return thing.NewMultiple(cfg.Exposition.Name, handles...)
}

// buildLoops creates one update loop per configured property, all sharing
// the same producer.
func buildLoops(cfg *config.Config, registry *thing.Registry, producer sensor.Producer, m *metrics.Metrics) ([]*updater.Loop, error) {
	var loops []*updater.Loop
	for _, tc := range cfg.Things {
		h, err := registry.Thing(tc.ID)
		if err != nil {
			return nil, err
		}
		for _, pc := range tc.Properties {
			l, err := updater.New(updater.Config{
				Handle:   h,
				Property: pc.Name,
				Producer: producer,
				Interval: cfg.Sensor.Interval,
				Binding: updater.Binding{
					Field:  pc.Field,
					Scale:  pc.Scale,
					Offset: pc.Offset,
					Clamp:  !pc.Unclamped,
				},
				ReadOnStart: cfg.Sensor.ReadOnStart,
			}, m)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", tc.ID, pc.Name, err)
			}
			loops = append(loops, l)
		}
	}
	return loops, nil
}
