// Package sensor provides environmental reading producers for update loops.
//
// A Producer returns one BME680-class Reading per call. Two producers exist:
//
//   - Simulated: a seeded random walk with a configurable fault rate, used
//     for development and when no hardware is attached.
//   - MQTTSource: the latest reading published by an external driver process
//     on graylogic/sensor/{id}/reading. Physical bus access lives in that
//     process, not here.
//
// Every error returned by a Producer wraps ErrProducer so callers can treat
// all acquisition failures as one recoverable class:
//
//	reading, err := producer.Read(ctx)
//	if errors.Is(err, sensor.ErrProducer) {
//	    // skip this cycle
//	}
package sensor
