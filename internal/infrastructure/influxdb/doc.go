// Package influxdb exports committed property values to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 non-blocking write API. Each
// property change becomes one point:
//
//	thing_property,property=level,thing_id=humidity-sensor value=42.5 <time>
//
// Points are batched according to influxdb.batch_size and
// influxdb.flush_interval, so Deliver returns as soon as the point is
// buffered. Batch failures arrive asynchronously through SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	dispatcher.AddSink(influxdb.NewSink(client))
package influxdb
