package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Gray Logic Things topic hierarchy.
//
//	graylogic/things/{thing}/properties/{property}/state   retained, published
//	graylogic/things/{thing}/properties/{property}/set     subscribed
//	graylogic/sensor/{sensor}/reading                      subscribed
//	graylogic/system/status                                retained, LWT
const (
	// TopicPrefix is the root of every topic.
	TopicPrefix = "graylogic"

	// TopicPrefixThings is the base for thing property topics.
	TopicPrefixThings = "graylogic/things"

	// TopicPrefixSensor is the base for raw sensor readings from driver processes.
	TopicPrefixSensor = "graylogic/sensor"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for Gray Logic Things MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.PropertyState("humidity-sensor", "level")
//	// Returns: "graylogic/things/humidity-sensor/properties/level/state"
type Topics struct{}

// =============================================================================
// Thing Topics
// =============================================================================

// PropertyState returns the topic carrying a property's committed value.
//
// Example: graylogic/things/humidity-sensor/properties/level/state
func (Topics) PropertyState(thingID, property string) string {
	return fmt.Sprintf("%s/%s/properties/%s/state", TopicPrefixThings, thingID, property)
}

// PropertySet returns the topic accepting external writes to a property.
//
// Example: graylogic/things/humidity-sensor/properties/level/set
func (Topics) PropertySet(thingID, property string) string {
	return fmt.Sprintf("%s/%s/properties/%s/set", TopicPrefixThings, thingID, property)
}

// =============================================================================
// Sensor Topics
// =============================================================================

// SensorReading returns the topic a driver process publishes readings on.
//
// Example: graylogic/sensor/bme680/reading
func (Topics) SensorReading(sensorID string) string {
	return fmt.Sprintf("%s/%s/reading", TopicPrefixSensor, sensorID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllPropertySets returns a pattern matching every property write topic.
//
// Pattern: graylogic/things/+/properties/+/set
func (Topics) AllPropertySets() string {
	return fmt.Sprintf("%s/+/properties/+/set", TopicPrefixThings)
}

// ParsePropertyTopic splits a property state or set topic into its thing ID,
// property name and trailing verb ("state" or "set").
func ParsePropertyTopic(topic string) (thingID, property, verb string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixThings+"/")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[1] != "properties" {
		return "", "", "", false
	}
	if parts[0] == "" || parts[2] == "" {
		return "", "", "", false
	}
	switch parts[3] {
	case "state", "set":
		return parts[0], parts[2], parts[3], true
	default:
		return "", "", "", false
	}
}
