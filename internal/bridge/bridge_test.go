package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

// mockClient records publishes and keeps subscribed handlers.
type mockClient struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]mqtt.MessageHandler
	publishErr error
	onPublish  func(topic string)
}

func newMockClient() *mockClient {
	return &mockClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockClient) Publish(topic string, payload []byte, _ byte, retained bool) error {
	if m.onPublish != nil {
		m.onPublish(topic)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic, payload, retained})
	return nil
}

func (m *mockClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *mockClient) deliver(topic string, payload string) error {
	m.mu.Lock()
	h := m.handlers[mqtt.Topics{}.AllPropertySets()]
	m.mu.Unlock()
	return h(topic, []byte(payload))
}

// lastOn returns the most recent payload published to topic.
func (m *mockClient) lastOn(topic string) (StateMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].topic == topic {
			var msg StateMessage
			if err := json.Unmarshal(m.published[i].payload, &msg); err != nil {
				return StateMessage{}, false
			}
			return msg, true
		}
	}
	return StateMessage{}, false
}

func (m *mockClient) last() published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[len(m.published)-1]
}

// mockLogger counts warnings.
type mockLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func float64Ptr(v float64) *float64 { return &v }

// newTestRegistry builds a humidity thing with a read-only level and a
// writable offset.
func newTestRegistry(t *testing.T) (*thing.Registry, *thing.Handle, chan thing.Event) {
	t.Helper()
	th := thing.New("humidity-sensor", "Humidity", []string{"MultiLevelSensor"}, "")
	level := thing.NewProperty("level", 40, thing.Schema{
		Type: thing.TypeNumber, Minimum: float64Ptr(0), Maximum: float64Ptr(100), ReadOnly: true,
	})
	offset := thing.NewProperty("offset", 0, thing.Schema{
		Type: thing.TypeNumber, Minimum: float64Ptr(-10), Maximum: float64Ptr(10),
	})
	for _, p := range []*thing.Property{level, offset} {
		if err := th.AddProperty(p); err != nil {
			t.Fatal(err)
		}
	}
	events := make(chan thing.Event, 8)
	th.SetNotifier(thing.NotifierFunc(func(ev thing.Event) { events <- ev }))

	h := thing.NewHandle(th)
	reg, err := thing.NewSingle(h)
	if err != nil {
		t.Fatal(err)
	}
	return reg, h, events
}

// ============================================================================
// Outbound state
// ============================================================================

func TestDeliver_PublishesRetainedState(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	client := newMockClient()
	b := New(client, reg, 1)

	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	err := b.Deliver(context.Background(), thing.Event{
		ThingID: "humidity-sensor", Property: "level", Value: 42.5, Time: at,
	})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	got := client.last()
	if got.topic != "graylogic/things/humidity-sensor/properties/level/state" {
		t.Errorf("topic = %q", got.topic)
	}
	if !got.retained {
		t.Error("state not published retained")
	}
	var msg StateMessage
	if err := json.Unmarshal(got.payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Value != 42.5 || !msg.Timestamp.Equal(at) || msg.ThingID != "humidity-sensor" {
		t.Errorf("payload = %+v", msg)
	}
}

func TestDeliver_PublishError(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	client := newMockClient()
	client.publishErr = mqtt.ErrNotConnected
	b := New(client, reg, 1)

	err := b.Deliver(context.Background(), thing.Event{ThingID: "humidity-sensor", Property: "level"})
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Deliver() error = %v, want ErrNotConnected", err)
	}
}

func TestStart_PublishesSnapshotAndSubscribes(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	client := newMockClient()
	b := New(client, reg, 1)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(client.published) != 2 {
		t.Errorf("snapshot published %d messages, want 2", len(client.published))
	}
	if _, ok := client.handlers["graylogic/things/+/properties/+/set"]; !ok {
		t.Error("set topic not subscribed")
	}

	if err := b.Stop(); err != nil {
		t.Fatal(err)
	}
	if len(client.handlers) != 0 {
		t.Error("Stop() did not unsubscribe")
	}
}

func TestStart_WriteDuringSnapshotIsNotOverwritten(t *testing.T) {
	reg, h, events := newTestRegistry(t)
	client := newMockClient()
	b := New(client, reg, 1)

	levelTopic := mqtt.Topics{}.PropertyState("humidity-sensor", "level")
	offsetTopic := mqtt.Topics{}.PropertyState("humidity-sensor", "offset")

	writerDone := make(chan error, 1)
	var once sync.Once
	client.onPublish = func(topic string) {
		if topic != levelTopic {
			return
		}
		once.Do(func() {
			go func() {
				if _, err := h.WriteProperty("offset", 5); err != nil {
					writerDone <- err
					return
				}
				writerDone <- b.Deliver(context.Background(), <-events)
			}()
			// Give the writer time to reach the handle.
			time.Sleep(20 * time.Millisecond)
		})
	}

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case err := <-writerDone:
		if err != nil {
			t.Fatalf("concurrent write error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("concurrent write did not finish")
	}

	msg, ok := client.lastOn(offsetTopic)
	if !ok {
		t.Fatal("offset state never published")
	}
	if msg.Value != 5 {
		t.Errorf("retained offset = %v, want 5", msg.Value)
	}
}

// ============================================================================
// Inbound set
// ============================================================================

func TestHandleSet_Writable(t *testing.T) {
	reg, h, events := newTestRegistry(t)
	client := newMockClient()
	b := New(client, reg, 1)
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := client.deliver("graylogic/things/humidity-sensor/properties/offset/set", `{"value": 25, "source": "panel"}`)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if v, _ := h.PropertyValue("offset"); v != 10 {
		t.Errorf("offset = %v, want 10 (clamped)", v)
	}
	select {
	case ev := <-events:
		if ev.Property != "offset" || ev.Value != 10 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification for accepted write")
	}
}

func TestHandleSet_ReadOnly(t *testing.T) {
	reg, h, events := newTestRegistry(t)
	client := newMockClient()
	logger := &mockLogger{}
	b := New(client, reg, 1)
	b.SetLogger(logger)
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := client.deliver("graylogic/things/humidity-sensor/properties/level/set", `{"value": 99}`)
	if err != nil {
		t.Errorf("handler error = %v, want nil (logged)", err)
	}
	if v, _ := h.PropertyValue("level"); v != 40 {
		t.Errorf("level = %v, want unchanged 40", v)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one", logger.warns)
	}
	select {
	case ev := <-events:
		t.Errorf("unexpected notification %+v", ev)
	default:
	}
}

func TestHandleSet_Errors(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"bad json", "graylogic/things/humidity-sensor/properties/offset/set", `{"value":`, ErrInvalidPayload},
		{"missing value", "graylogic/things/humidity-sensor/properties/offset/set", `{}`, ErrInvalidPayload},
		{"state topic", "graylogic/things/humidity-sensor/properties/offset/state", `{"value": 1}`, ErrInvalidTopic},
		{"unknown thing", "graylogic/things/pressure-sensor/properties/level/set", `{"value": 1}`, thing.ErrThingNotFound},
		{"unknown property", "graylogic/things/humidity-sensor/properties/gain/set", `{"value": 1}`, thing.ErrPropertyNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _, _ := newTestRegistry(t)
			client := newMockClient()
			b := New(client, reg, 1)
			if err := b.Start(context.Background()); err != nil {
				t.Fatal(err)
			}

			if err := client.deliver(tt.topic, tt.payload); !errors.Is(err, tt.wantErr) {
				t.Errorf("handler error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
