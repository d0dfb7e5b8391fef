package updater

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-things/internal/sensor"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// ErrInvalidConfig is returned by New for an unusable loop configuration.
var ErrInvalidConfig = errors.New("updater: invalid config")

// Binding maps a reading field onto a property value.
type Binding struct {
	// Field is one of the sensor.Field* names.
	Field string

	// Scale multiplies the raw value. Zero means 1.
	Scale float64

	// Offset is added after scaling.
	Offset float64

	// Clamp limits the value to the property schema bounds.
	Clamp bool
}

// Config configures a Loop.
type Config struct {
	Handle      *thing.Handle
	Property    string
	Producer    sensor.Producer
	Interval    time.Duration
	Binding     Binding
	ReadOnStart bool
}

// Logger defines the logging interface used by update loops.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Loop periodically refreshes one property from a Producer.
type Loop struct {
	cfg     Config
	schema  thing.Schema
	thingID string
	metrics *metrics.Metrics
	logger  Logger

	// cycleMu serialises cycles so commit and notify order match when a
	// refresh overlaps a tick.
	cycleMu sync.Mutex

	state     atomic.Int32
	committed atomic.Uint64
	skipped   atomic.Uint64
}

// New validates cfg and creates a loop. m may be nil.
func New(cfg Config, m *metrics.Metrics) (*Loop, error) {
	if cfg.Handle == nil {
		return nil, fmt.Errorf("%w: handle is required", ErrInvalidConfig)
	}
	if cfg.Producer == nil {
		return nil, fmt.Errorf("%w: producer is required", ErrInvalidConfig)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if _, err := (sensor.Reading{}).Field(cfg.Binding.Field); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Binding.Scale == 0 {
		cfg.Binding.Scale = 1
	}

	schema, err := cfg.Handle.PropertySchema(cfg.Property)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Loop{
		cfg:     cfg,
		schema:  schema,
		thingID: cfg.Handle.ID(),
		metrics: m,
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger. Call before Run.
func (l *Loop) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	l.logger = logger
}

// State returns the current cycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Counts returns the number of committed and skipped cycles.
func (l *Loop) Counts() (committed, skipped uint64) {
	return l.committed.Load(), l.skipped.Load()
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Run cycles until ctx is cancelled or the handle is poisoned.
//
// Returns nil on cancellation, or an error wrapping thing.ErrLockPoisoned.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(StateTerminating)

	l.logger.Info("update loop started",
		"thing_id", l.thingID,
		"property", l.cfg.Property,
		"interval", l.cfg.Interval.String(),
	)

	if l.cfg.ReadOnStart {
		if err := l.RunCycle(ctx); isFatal(err) {
			return l.fatal(err)
		}
	}

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("update loop stopped",
				"thing_id", l.thingID,
				"property", l.cfg.Property,
			)
			return nil
		case <-ticker.C:
			if err := l.RunCycle(ctx); isFatal(err) {
				return l.fatal(err)
			}
		}
	}
}

// RunCycle performs one acquire, transform, commit, notify pass. Concurrent
// calls on the same loop run one after another.
//
// Returns:
//   - nil when a value was committed and notified
//   - an error wrapping sensor.ErrProducer when the cycle was skipped
//   - an error wrapping thing.ErrLockPoisoned when the handle is unusable
func (l *Loop) RunCycle(ctx context.Context) error {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()

	start := time.Now()
	defer l.setState(StateIdle)

	l.setState(StateAcquiringReading)
	reading, err := l.cfg.Producer.Read(ctx)
	if err != nil {
		if !errors.Is(err, sensor.ErrProducer) {
			err = fmt.Errorf("%w: %w", sensor.ErrProducer, err)
		}
		return l.skip(err)
	}
	l.logger.Debug("sensor reading",
		"thing_id", l.thingID,
		"temperature_c", reading.TemperatureC,
		"pressure_hpa", reading.PressureHPa,
		"humidity_percent", reading.HumidityPercent,
		"gas_resistance_ohm", reading.GasResistanceOhm,
	)

	l.setState(StateTransforming)
	value, err := l.transform(reading)
	if err != nil {
		return l.skip(err)
	}

	l.setState(StateCommitting)
	if _, err := l.cfg.Handle.Set(l.cfg.Property, value); err != nil {
		if errors.Is(err, thing.ErrLockPoisoned) {
			l.observe(metrics.OutcomeFatal)
			return err
		}
		return l.skip(err)
	}

	// Write lock released by Set.
	l.setState(StateNotifying)
	l.cfg.Handle.Notify(l.cfg.Property, value)

	l.committed.Add(1)
	l.observe(metrics.OutcomeCommitted)
	if l.metrics != nil {
		l.metrics.PropertyValue.WithLabelValues(l.thingID, l.cfg.Property).Set(value)
		l.metrics.UpdateDuration.WithLabelValues(l.thingID, l.cfg.Property).Observe(time.Since(start).Seconds())
	}
	l.logger.Debug("property updated",
		"thing_id", l.thingID,
		"property", l.cfg.Property,
		"value", value,
	)
	return nil
}

// transform selects the bound field, applies scale, offset and clamping,
// and rounds integer properties.
func (l *Loop) transform(r sensor.Reading) (float64, error) {
	raw, err := r.Field(l.cfg.Binding.Field)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", sensor.ErrProducer, err)
	}
	v := raw*l.cfg.Binding.Scale + l.cfg.Binding.Offset
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite %s value", sensor.ErrProducer, l.cfg.Binding.Field)
	}
	if l.cfg.Binding.Clamp {
		v = l.schema.Clamp(v)
	}
	if l.schema.Type == thing.TypeInteger {
		v = math.Round(v)
	}
	return v, nil
}

func (l *Loop) skip(err error) error {
	l.skipped.Add(1)
	l.observe(metrics.OutcomeSkipped)
	l.logger.Warn("update cycle skipped",
		"thing_id", l.thingID,
		"property", l.cfg.Property,
		"error", err,
	)
	return err
}

func (l *Loop) fatal(err error) error {
	l.logger.Error("update loop terminated",
		"thing_id", l.thingID,
		"property", l.cfg.Property,
		"error", err,
	)
	return fmt.Errorf("update loop %s/%s: %w", l.thingID, l.cfg.Property, err)
}

func (l *Loop) observe(outcome string) {
	if l.metrics != nil {
		l.metrics.UpdateCycles.WithLabelValues(l.thingID, l.cfg.Property, outcome).Inc()
	}
}

func isFatal(err error) bool {
	return errors.Is(err, thing.ErrLockPoisoned)
}
