// Package history keeps a local record of committed property values.
//
// The Sink is registered with the notification dispatcher and appends one
// row to the property_history table per event. Repository.List serves the
// transport's history route, newest first.
//
// Rows older than the configured retention are removed by Pruner, which
// runs alongside the update loops.
package history
