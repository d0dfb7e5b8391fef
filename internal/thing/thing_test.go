package thing

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// recordingNotifier collects events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func float64Ptr(v float64) *float64 { return &v }

func humiditySchema() Schema {
	return Schema{
		SemanticType: "LevelProperty",
		Title:        "Humidity",
		Type:         TypeNumber,
		Minimum:      float64Ptr(0),
		Maximum:      float64Ptr(100),
		Unit:         "percent",
		ReadOnly:     true,
	}
}

func newHumidityThing(t *testing.T) (*Thing, *recordingNotifier) {
	t.Helper()
	th := New("humidity-sensor", "Humidity", []string{"MultiLevelSensor"}, "BME680 humidity")
	if err := th.AddProperty(NewProperty("level", 0, humiditySchema())); err != nil {
		t.Fatalf("AddProperty() error = %v", err)
	}
	rec := &recordingNotifier{}
	th.SetNotifier(rec)
	return th, rec
}

// ============================================================================
// Schema
// ============================================================================

func TestSchema_Clamp(t *testing.T) {
	s := humiditySchema()
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"inside", 42.5, 42.5},
		{"above max", 134.2, 100},
		{"below min", -3, 0},
		{"at max", 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Clamp(tt.in); got != tt.want {
				t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSchema_ClampUnbounded(t *testing.T) {
	s := Schema{Type: TypeNumber}
	if got := s.Clamp(1e9); got != 1e9 {
		t.Errorf("Clamp(1e9) = %v, want unchanged", got)
	}
}

func TestSchema_InRange(t *testing.T) {
	s := humiditySchema()
	if !s.InRange(50) {
		t.Error("InRange(50) = false, want true")
	}
	if s.InRange(134.2) {
		t.Error("InRange(134.2) = true, want false")
	}
}

func TestNewProperty_CopiesSchema(t *testing.T) {
	s := humiditySchema()
	p := NewProperty("level", 0, s)
	*s.Maximum = 5

	if got := *p.Schema().Maximum; got != 100 {
		t.Errorf("Schema().Maximum = %v, want 100", got)
	}

	// Mutating the returned copy must not leak back either.
	got := p.Schema()
	*got.Minimum = 99
	if *p.Schema().Minimum != 0 {
		t.Error("Schema() returned shared pointer")
	}
}

func TestNewProperty_DefaultsType(t *testing.T) {
	p := NewProperty("x", 0, Schema{})
	if p.Schema().Type != TypeNumber {
		t.Errorf("Type = %q, want %q", p.Schema().Type, TypeNumber)
	}
}

// ============================================================================
// Property write paths
// ============================================================================

func TestProperty_SetCachedValueIgnoresReadOnly(t *testing.T) {
	p := NewProperty("level", 10, humiditySchema())

	prev := p.SetCachedValue(55.5)
	if prev != 10 {
		t.Errorf("SetCachedValue() prev = %v, want 10", prev)
	}
	if p.Value() != 55.5 {
		t.Errorf("Value() = %v, want 55.5", p.Value())
	}
}

func TestProperty_WriteReadOnly(t *testing.T) {
	p := NewProperty("level", 10, humiditySchema())

	_, err := p.Write(99)
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Write() error = %v, want ErrReadOnly", err)
	}
	if p.Value() != 10 {
		t.Errorf("Value() = %v after rejected write, want 10", p.Value())
	}
}

func TestProperty_WriteWritable(t *testing.T) {
	s := humiditySchema()
	s.ReadOnly = false
	p := NewProperty("target", 20, s)

	prev, err := p.Write(21)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if prev != 20 || p.Value() != 21 {
		t.Errorf("Write() prev = %v value = %v, want 20 and 21", prev, p.Value())
	}
}

// ============================================================================
// Thing
// ============================================================================

func TestThing_AddPropertyDuplicate(t *testing.T) {
	th, _ := newHumidityThing(t)

	err := th.AddProperty(NewProperty("level", 1, humiditySchema()))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("AddProperty() error = %v, want ErrDuplicateName", err)
	}

	p, _ := th.FindProperty("level")
	if p.Value() != 0 {
		t.Errorf("original value = %v, want 0", p.Value())
	}
	if len(th.Properties()) != 1 {
		t.Errorf("len(Properties()) = %d, want 1", len(th.Properties()))
	}
}

func TestThing_FindPropertyMissing(t *testing.T) {
	th, _ := newHumidityThing(t)
	if _, ok := th.FindProperty("pressure"); ok {
		t.Error("FindProperty(pressure) ok = true, want false")
	}
}

func TestThing_PropertyOrderAndRemove(t *testing.T) {
	th := New("weather", "Weather", nil, "")
	for _, name := range []string{"temperature", "humidity", "pressure"} {
		if err := th.AddProperty(NewProperty(name, 0, Schema{})); err != nil {
			t.Fatalf("AddProperty(%s) error = %v", name, err)
		}
	}

	if !th.RemoveProperty("humidity") {
		t.Fatal("RemoveProperty(humidity) = false, want true")
	}
	if th.RemoveProperty("humidity") {
		t.Error("second RemoveProperty(humidity) = true, want false")
	}

	props := th.Properties()
	if len(props) != 2 || props[0].Name() != "temperature" || props[1].Name() != "pressure" {
		t.Errorf("Properties() order = %v, want [temperature pressure]", names(props))
	}
}

func names(props []*Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name()
	}
	return out
}

func TestThing_NotifyWithoutNotifier(t *testing.T) {
	th := New("x", "X", nil, "")
	th.Notify("level", 1) // must not panic
}

func TestThing_Describe(t *testing.T) {
	th, _ := newHumidityThing(t)
	th.props["level"].value = 47.25

	desc := th.Describe()
	if desc.ID != "humidity-sensor" || desc.Context != WebThingContext {
		t.Errorf("Describe() id/context = %q/%q", desc.ID, desc.Context)
	}
	if len(desc.Properties) != 1 || desc.Properties[0].Value != 47.25 {
		t.Fatalf("Describe().Properties = %+v", desc.Properties)
	}

	data, err := json.Marshal(desc)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	props := raw["properties"].([]any)
	first := props[0].(map[string]any)
	if first["@type"] != "LevelProperty" || first["readOnly"] != true || first["unit"] != "percent" {
		t.Errorf("property JSON = %v", first)
	}
}

// ============================================================================
// Handle
// ============================================================================

func TestHandle_CommitRoundTrip(t *testing.T) {
	th, rec := newHumidityThing(t)
	h := NewHandle(th)

	prev, err := h.Commit("level", 63.4)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if prev != 0 {
		t.Errorf("Commit() prev = %v, want 0", prev)
	}

	got, err := h.PropertyValue("level")
	if err != nil || got != 63.4 {
		t.Errorf("PropertyValue() = %v, %v, want 63.4", got, err)
	}

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ThingID != "humidity-sensor" || events[0].Property != "level" || events[0].Value != 63.4 {
		t.Errorf("event = %+v", events[0])
	}
}

func TestHandle_CommitUnchangedStillNotifies(t *testing.T) {
	th, rec := newHumidityThing(t)
	h := NewHandle(th)

	for i := 0; i < 2; i++ {
		if _, err := h.Commit("level", 40); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}
	if n := len(rec.Events()); n != 2 {
		t.Errorf("got %d events, want one per commit (2)", n)
	}
}

func TestHandle_CommitUnknownProperty(t *testing.T) {
	th, rec := newHumidityThing(t)
	h := NewHandle(th)

	_, err := h.Commit("pressure", 1000)
	if !errors.Is(err, ErrPropertyNotFound) {
		t.Fatalf("Commit() error = %v, want ErrPropertyNotFound", err)
	}
	if len(rec.Events()) != 0 {
		t.Error("failed commit emitted an event")
	}
}

func TestHandle_WritePropertyReadOnly(t *testing.T) {
	th, rec := newHumidityThing(t)
	h := NewHandle(th)
	if _, err := h.Commit("level", 12); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	_, err := h.WriteProperty("level", 99)
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("WriteProperty() error = %v, want ErrReadOnly", err)
	}
	if v, _ := h.PropertyValue("level"); v != 12 {
		t.Errorf("value = %v after rejected write, want 12", v)
	}
	if n := len(rec.Events()); n != 1 {
		t.Errorf("got %d events, want only the commit event", n)
	}
}

func TestHandle_WritePropertyClamps(t *testing.T) {
	th := New("thermostat", "Thermostat", nil, "")
	s := humiditySchema()
	s.ReadOnly = false
	if err := th.AddProperty(NewProperty("target", 50, s)); err != nil {
		t.Fatal(err)
	}
	h := NewHandle(th)

	stored, err := h.WriteProperty("target", 134.2)
	if err != nil {
		t.Fatalf("WriteProperty() error = %v", err)
	}
	if stored != 100 {
		t.Errorf("WriteProperty() stored = %v, want 100", stored)
	}
}

func TestHandle_WritePropertyRejectsNonFinite(t *testing.T) {
	th, _ := newHumidityThing(t)
	h := NewHandle(th)

	if _, err := h.WriteProperty("level", math.NaN()); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("WriteProperty(NaN) error = %v, want ErrInvalidValue", err)
	}
}

func TestHandle_NotifyRunsAfterUnlock(t *testing.T) {
	th := New("t", "T", nil, "")
	if err := th.AddProperty(NewProperty("level", 0, Schema{ReadOnly: true})); err != nil {
		t.Fatal(err)
	}
	h := NewHandle(th)

	var seen float64
	var readErr error
	// A notifier that reads back through the handle would deadlock if
	// Notify ran under the write lock.
	th.SetNotifier(NotifierFunc(func(ev Event) {
		seen, readErr = h.PropertyValue(ev.Property)
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.Commit("level", 7)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Commit() deadlocked: notifier ran under the write lock")
	}
	if readErr != nil || seen != 7 {
		t.Errorf("notifier read = %v, %v, want 7", seen, readErr)
	}
}

func TestHandle_ConcurrentReadersSeeCommittedValues(t *testing.T) {
	th, _ := newHumidityThing(t)
	h := NewHandle(th)

	valid := map[float64]bool{0: true}
	for i := 1; i <= 200; i++ {
		valid[float64(i)] = true
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			if _, err := h.Commit("level", float64(i)); err != nil {
				t.Errorf("Commit() error = %v", err)
				return
			}
		}
	}()

	errs := make(chan float64, 8)
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				v, err := h.PropertyValue("level")
				if err != nil || !valid[v] {
					errs <- v
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for v := range errs {
		t.Errorf("reader observed value %v that was never committed", v)
	}
}

func TestHandle_PanicPoisons(t *testing.T) {
	th, _ := newHumidityThing(t)
	h := NewHandle(th)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("Write() swallowed the panic")
			}
		}()
		_ = h.Write(func(_ *Thing) error {
			panic("sensor bus fault")
		})
	}()

	if !h.Poisoned() {
		t.Fatal("Poisoned() = false after panicking writer")
	}
	if _, err := h.PropertyValue("level"); !errors.Is(err, ErrLockPoisoned) {
		t.Errorf("PropertyValue() error = %v, want ErrLockPoisoned", err)
	}
	if _, err := h.Commit("level", 1); !errors.Is(err, ErrLockPoisoned) {
		t.Errorf("Commit() error = %v, want ErrLockPoisoned", err)
	}
	if _, err := h.Describe(); !errors.Is(err, ErrLockPoisoned) {
		t.Errorf("Describe() error = %v, want ErrLockPoisoned", err)
	}
}

func TestHandle_ErrorDoesNotPoison(t *testing.T) {
	th, _ := newHumidityThing(t)
	h := NewHandle(th)

	sentinel := errors.New("boom")
	if err := h.Write(func(_ *Thing) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("Write() error = %v, want sentinel", err)
	}
	if h.Poisoned() {
		t.Error("Poisoned() = true after a plain error")
	}
}

func TestHandle_PropertySchema(t *testing.T) {
	th, _ := newHumidityThing(t)
	h := NewHandle(th)

	s, err := h.PropertySchema("level")
	if err != nil {
		t.Fatalf("PropertySchema() error = %v", err)
	}
	if s.Unit != "percent" || !s.ReadOnly {
		t.Errorf("PropertySchema() = %+v", s)
	}
	if _, err := h.PropertySchema("nope"); !errors.Is(err, ErrPropertyNotFound) {
		t.Errorf("PropertySchema(nope) error = %v, want ErrPropertyNotFound", err)
	}
}
