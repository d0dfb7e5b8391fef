package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// MeasurementThingProperty is the measurement every property value is
// written to.
const MeasurementThingProperty = "thing_property"

// SinkName identifies the InfluxDB sink in logs and metrics.
const SinkName = "influxdb"

// PropertyPoint builds the point for one property change. A zero event time
// is replaced by now.
func PropertyPoint(ev thing.Event) *write.Point {
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		MeasurementThingProperty,
		map[string]string{
			"thing_id": ev.ThingID,
			"property": ev.Property,
		},
		map[string]interface{}{
			"value": ev.Value,
		},
		at,
	)
}

// WriteProperty buffers one property change. The write is non-blocking.
//
// Returns ErrNotConnected after Close.
func (c *Client) WriteProperty(ev thing.Event) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writer.WritePoint(PropertyPoint(ev))
	return nil
}

// Sink adapts a Client to the notification dispatcher.
type Sink struct {
	client *Client
}

// NewSink returns a dispatcher sink writing through client.
func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

// Name implements notify.Sink.
func (s *Sink) Name() string { return SinkName }

// Deliver implements notify.Sink.
func (s *Sink) Deliver(_ context.Context, ev thing.Event) error {
	return s.client.WriteProperty(ev)
}
