// Package bridge connects exposed things to the MQTT broker.
//
// Outbound, the Bridge is a notification sink: every committed property
// value is published retained to
//
//	graylogic/things/{thing}/properties/{property}/state
//
// Inbound, it subscribes to graylogic/things/+/properties/+/set and turns
// each {"value": n} payload into an external write on the owning handle.
// The write goes through Handle.WriteProperty, so read-only properties are
// refused and accepted values are clamped to the schema. An accepted write
// is published back on the state topic by the normal notification path.
package bridge
