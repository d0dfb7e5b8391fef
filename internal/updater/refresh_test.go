package updater

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/action"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

func TestRefreshFactory(t *testing.T) {
	h, log := newHumidityHandle(t, thing.TypeNumber)
	l := newLoop(t, h, &scriptedProducer{results: []result{humidity(61)}}, true, nil)

	reg := action.NewRegistry()
	if err := reg.Register(RefreshActionName, RefreshFactory([]*Loop{l})); err != nil {
		t.Fatal(err)
	}

	act, ok := reg.Generate(h, RefreshActionName, nil)
	if !ok {
		t.Fatal("Generate(refresh) ok = false")
	}
	if err := act.Perform(context.Background()); err != nil {
		t.Fatalf("Perform() error = %v", err)
	}
	if v, _ := h.PropertyValue("level"); v != 61 {
		t.Errorf("value = %v, want 61", v)
	}
	if log.Len() != 1 {
		t.Errorf("got %d notifications, want 1", log.Len())
	}
}

func TestRefreshFactory_UnboundThing(t *testing.T) {
	bound, _ := newHumidityHandle(t, thing.TypeNumber)
	l := newLoop(t, bound, &scriptedProducer{results: []result{humidity(1)}}, true, nil)
	other := thing.NewHandle(thing.New("pressure-sensor", "Pressure", nil, ""))

	f := RefreshFactory([]*Loop{l})
	if _, ok := f("id-1", other, nil); ok {
		t.Error("factory accepted a thing without loops")
	}
}

// gatedNotifier blocks the first Notify call until release is closed.
type gatedNotifier struct {
	log     eventLog
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedNotifier) Notify(ev thing.Event) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	g.log.Notify(ev)
}

func TestRefresh_SerialisedWithTicker(t *testing.T) {
	th := thing.New("humidity-sensor", "Humidity Sensor", nil, "")
	if err := th.AddProperty(thing.NewProperty("level", 0, thing.Schema{
		Type:     thing.TypeNumber,
		Minimum:  float64Ptr(0),
		Maximum:  float64Ptr(100),
		ReadOnly: true,
	})); err != nil {
		t.Fatal(err)
	}
	gate := &gatedNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	th.SetNotifier(gate)
	h := thing.NewHandle(th)

	p := &scriptedProducer{results: []result{humidity(10), humidity(20), humidity(30)}}
	l := newLoop(t, h, p, true, nil)

	act, ok := RefreshFactory([]*Loop{l})("id-1", h, nil)
	if !ok {
		t.Fatal("factory rejected bound thing")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := act.Perform(context.Background()); err != nil {
			t.Errorf("Perform() error = %v", err)
		}
	}()
	<-gate.entered

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Several ticks elapse while the refresh cycle is still notifying.
	time.Sleep(50 * time.Millisecond)
	if got := p.Calls(); got != 1 {
		t.Errorf("producer reads during notify = %d, want 1", got)
	}

	close(gate.release)
	wg.Wait()
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if gate.log.Len() < 2 {
		t.Fatalf("got %d notifications, want at least 2", gate.log.Len())
	}
	cached, _ := h.PropertyValue("level")
	if last := gate.log.Last().Value; last != cached {
		t.Errorf("last notification = %v, want cached value %v", last, cached)
	}
	if first := gate.log.events[0].Value; first != 10 {
		t.Errorf("first notification = %v, want 10", first)
	}
}
