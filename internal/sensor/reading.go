package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/config"
)

// Reading field names used to bind a property to a measurement.
const (
	FieldTemperature   = config.FieldTemperature
	FieldHumidity      = config.FieldHumidity
	FieldPressure      = config.FieldPressure
	FieldGasResistance = config.FieldGasResistance
)

// Reading is one environmental measurement.
type Reading struct {
	TemperatureC     float64   `json:"temperature_c"`
	HumidityPercent  float64   `json:"humidity_percent"`
	PressureHPa      float64   `json:"pressure_hpa"`
	GasResistanceOhm float64   `json:"gas_resistance_ohm"`
	Time             time.Time `json:"timestamp"`
}

// Field returns the measurement bound to the named field.
func (r Reading) Field(name string) (float64, error) {
	switch name {
	case FieldTemperature:
		return r.TemperatureC, nil
	case FieldHumidity:
		return r.HumidityPercent, nil
	case FieldPressure:
		return r.PressureHPa, nil
	case FieldGasResistance:
		return r.GasResistanceOhm, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

// Producer acquires readings. Read may block on I/O and must honour ctx.
type Producer interface {
	Read(ctx context.Context) (Reading, error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context) (Reading, error)

// Read calls f(ctx).
func (f ProducerFunc) Read(ctx context.Context) (Reading, error) {
	return f(ctx)
}
