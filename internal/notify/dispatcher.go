package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// deliveryTimeout bounds a single sink delivery.
const deliveryTimeout = 5 * time.Second

// DefaultQueueSize is used when a non-positive size is requested.
const DefaultQueueSize = 256

// Sink receives property change events from the dispatcher worker.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	Deliver(ctx context.Context, ev thing.Event) error
}

// Logger defines the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher fans property change events out to sinks.
type Dispatcher struct {
	queue   chan thing.Event
	metrics *metrics.Metrics

	mu     sync.RWMutex
	sinks  []Sink
	logger Logger

	enqueued  atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher creates a dispatcher with a queue of queueSize events.
// m may be nil.
func NewDispatcher(queueSize int, m *metrics.Metrics) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		queue:   make(chan thing.Event, queueSize),
		metrics: m,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger.
func (d *Dispatcher) SetLogger(l Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l == nil {
		d.logger = noopLogger{}
		return
	}
	d.logger = l
}

// AddSink registers s. Sinks added while Run is active receive subsequent events.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Notify enqueues ev without blocking. A full queue drops the event.
func (d *Dispatcher) Notify(ev thing.Event) {
	select {
	case d.queue <- ev:
		d.enqueued.Add(1)
		d.observe(metrics.EventEnqueued)
	default:
		d.dropped.Add(1)
		d.observe(metrics.EventDropped)
		d.getLogger().Warn("notify queue full, dropping event",
			"thing_id", ev.ThingID,
			"property", ev.Property,
		)
	}
	if d.metrics != nil {
		d.metrics.NotifyQueueDepth.Set(float64(len(d.queue)))
	}
}

// Run drains the queue until ctx is cancelled, then delivers whatever is
// still queued and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return nil
				}
			}
		}
	}
}

// deliver hands ev to every sink in order.
func (d *Dispatcher) deliver(ev thing.Event) {
	d.mu.RLock()
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.RUnlock()

	for _, s := range sinks {
		d.deliverTo(s, ev)
	}
	d.delivered.Add(1)
	d.observe(metrics.EventDelivered)
	if d.metrics != nil {
		d.metrics.NotifyQueueDepth.Set(float64(len(d.queue)))
	}
}

func (d *Dispatcher) deliverTo(s Sink, ev thing.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.getLogger().Error("notify sink panic recovered",
				"sink", s.Name(),
				"panic", r,
			)
			d.sinkFailed(s)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := s.Deliver(ctx, ev); err != nil {
		d.getLogger().Warn("notify sink delivery failed",
			"sink", s.Name(),
			"thing_id", ev.ThingID,
			"property", ev.Property,
			"error", err,
		)
		d.sinkFailed(s)
	}
}

func (d *Dispatcher) sinkFailed(s Sink) {
	if d.metrics != nil {
		d.metrics.NotifySinkErrors.WithLabelValues(s.Name()).Inc()
	}
}

func (d *Dispatcher) observe(outcome string) {
	if d.metrics != nil {
		d.metrics.NotifyEvents.WithLabelValues(outcome).Inc()
	}
}

func (d *Dispatcher) getLogger() Logger {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.logger
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Enqueued  uint64 `json:"enqueued"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
	Queued    int    `json:"queued"`
	Sinks     int    `json:"sinks"`
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	sinks := len(d.sinks)
	d.mu.RUnlock()
	return Stats{
		Enqueued:  d.enqueued.Load(),
		Dropped:   d.dropped.Load(),
		Delivered: d.delivered.Load(),
		Queued:    len(d.queue),
		Sinks:     sinks,
	}
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, ev thing.Event) error
}

// Name returns the sink name.
func (f SinkFunc) Name() string { return f.SinkName }

// Deliver calls the wrapped function.
func (f SinkFunc) Deliver(ctx context.Context, ev thing.Event) error { return f.Fn(ctx, ev) }
