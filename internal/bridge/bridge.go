package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// SinkName identifies the bridge in logs and metrics.
const SinkName = "mqtt"

// MQTTClient is the subset of the MQTT client the bridge uses.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Bridge publishes property state to MQTT and applies set requests.
type Bridge struct {
	client   MQTTClient
	registry *thing.Registry
	qos      byte
	topics   mqtt.Topics
	logger   Logger
}

// New creates a bridge for the things in registry.
func New(client MQTTClient, registry *thing.Registry, qos byte) *Bridge {
	return &Bridge{
		client:   client,
		registry: registry,
		qos:      qos,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger. Call before Start.
func (b *Bridge) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	b.logger = l
}

// Start publishes the current value of every property and subscribes to
// set requests.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.PublishSnapshot(ctx); err != nil {
		return err
	}

	topic := b.topics.AllPropertySets()
	if err := b.client.Subscribe(topic, b.qos, b.handleSet); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.logger.Info("mqtt bridge started", "topic", topic, "things", b.registry.Len())
	return nil
}

// Stop unsubscribes from set requests.
func (b *Bridge) Stop() error {
	return b.client.Unsubscribe(b.topics.AllPropertySets())
}

// PublishSnapshot publishes every property's cached value so retained
// state exists before the first update cycle. Each thing's values are
// published under its read lock, so a write can only be delivered after
// the snapshot of that thing.
func (b *Bridge) PublishSnapshot(ctx context.Context) error {
	now := time.Now().UTC()
	for _, h := range b.registry.Things() {
		err := h.Read(func(t *thing.Thing) error {
			values := t.PropertyValues()
			for _, name := range slices.Sorted(maps.Keys(values)) {
				ev := thing.Event{ThingID: h.ID(), Property: name, Value: values[name], Time: now}
				if err := b.Deliver(ctx, ev); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("snapshot of %s: %w", h.ID(), err)
		}
	}
	return nil
}

// Name implements notify.Sink.
func (b *Bridge) Name() string { return SinkName }

// Deliver implements notify.Sink by publishing ev retained on its state topic.
func (b *Bridge) Deliver(_ context.Context, ev thing.Event) error {
	payload, err := json.Marshal(StateMessage{
		ThingID:   ev.ThingID,
		Property:  ev.Property,
		Value:     ev.Value,
		Timestamp: ev.Time,
	})
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	topic := b.topics.PropertyState(ev.ThingID, ev.Property)
	if err := b.client.Publish(topic, payload, b.qos, true); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// handleSet applies one set request. Read-only rejections are logged here
// and not returned, since the sender cannot be told.
func (b *Bridge) handleSet(topic string, payload []byte) error {
	thingID, property, verb, ok := mqtt.ParsePropertyTopic(topic)
	if !ok || verb != "set" {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	msg, err := parseSetMessage(payload)
	if err != nil {
		return err
	}

	h, err := b.registry.Thing(thingID)
	if err != nil {
		return err
	}

	stored, err := h.WriteProperty(property, *msg.Value)
	switch {
	case errors.Is(err, thing.ErrReadOnly):
		b.logger.Warn("rejected write to read-only property",
			"thing_id", thingID,
			"property", property,
			"source", msg.Source,
		)
		return nil
	case err != nil:
		return fmt.Errorf("writing %s/%s: %w", thingID, property, err)
	}

	b.logger.Debug("property written over mqtt",
		"thing_id", thingID,
		"property", property,
		"requested", *msg.Value,
		"stored", stored,
		"source", msg.Source,
	)
	return nil
}
