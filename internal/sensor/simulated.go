package sensor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Starting point and per-call step of the random walk.
const (
	baseTemperatureC     = 21.0
	baseHumidityPercent  = 45.0
	basePressureHPa      = 1013.25
	baseGasResistanceOhm = 50000.0

	stepTemperatureC     = 0.3
	stepHumidityPercent  = 1.5
	stepPressureHPa      = 0.8
	stepGasResistanceOhm = 1500.0
)

// SimulatedConfig configures a Simulated producer.
type SimulatedConfig struct {
	// Seed makes the sequence reproducible. Zero picks a time-based seed.
	Seed uint64

	// FaultRate is the probability in [0, 1] that a Read fails.
	FaultRate float64

	// LegacyHumidity draws humidity as |70·u·(v−0.5)| with u, v uniform
	// in [0, 1) instead of walking it.
	LegacyHumidity bool
}

// Simulated is a BME680 stand-in that random-walks every measurement.
// It is safe for concurrent use.
type Simulated struct {
	mu     sync.Mutex
	rng    *rand.Rand
	cfg    SimulatedConfig
	last   Reading
	now    func() time.Time
	reads  uint64
	failed uint64
}

// NewSimulated creates a simulated producer.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulated{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		cfg: cfg,
		last: Reading{
			TemperatureC:     baseTemperatureC,
			HumidityPercent:  baseHumidityPercent,
			PressureHPa:      basePressureHPa,
			GasResistanceOhm: baseGasResistanceOhm,
		},
		now: time.Now,
	}
}

// Read returns the next simulated reading, or an ErrProducer-wrapped fault
// with probability FaultRate.
func (s *Simulated) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrProducer, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	if s.cfg.FaultRate > 0 && s.rng.Float64() < s.cfg.FaultRate {
		s.failed++
		return Reading{}, fmt.Errorf("%w: simulated bus fault", ErrProducer)
	}

	r := s.last
	r.TemperatureC = s.walk(r.TemperatureC, stepTemperatureC)
	r.PressureHPa = s.walk(r.PressureHPa, stepPressureHPa)
	r.GasResistanceOhm = max(0, s.walk(r.GasResistanceOhm, stepGasResistanceOhm))
	if s.cfg.LegacyHumidity {
		v := 70 * s.rng.Float64() * (-0.5 + s.rng.Float64())
		if v < 0 {
			v = -v
		}
		r.HumidityPercent = v
	} else {
		r.HumidityPercent = s.walk(r.HumidityPercent, stepHumidityPercent)
	}
	r.Time = s.now().UTC()

	s.last = r
	return r, nil
}

// walk moves v by a uniform step in [-step, step].
func (s *Simulated) walk(v, step float64) float64 {
	return v + (s.rng.Float64()*2-1)*step
}

// Stats returns the number of reads attempted and how many failed.
func (s *Simulated) Stats() (reads, failed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.failed
}
