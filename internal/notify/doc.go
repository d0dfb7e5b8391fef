// Package notify delivers property change events to observers.
//
// The Dispatcher implements thing.Notifier. Notify never blocks: events go
// onto a bounded queue and are dropped with a warning when it is full. A
// single worker drains the queue and hands each event to every registered
// Sink in registration order, so per-property delivery order equals commit
// order.
//
// Sinks in this service:
//   - the WebSocket hub (internal/api)
//   - the MQTT state publisher (internal/bridge)
//   - the InfluxDB writer (internal/infrastructure/influxdb)
//   - the SQLite history recorder (internal/history)
//
// A failing or panicking sink is logged and skipped; it never stops
// delivery to the others.
package notify
