package mqtt

import "fmt"

// Topic prefixes for the energy poller's MQTT surface.
//
// The service is publish-only: readings stream out per device, and a
// single retained availability topic tells consumers whether the
// publisher is alive.
const (
	// TopicPrefix is the base for all topics this service publishes.
	TopicPrefix = "graylogic/energy"

	// TopicPrefixReading is the base for per-device reading topics.
	// Scheme: graylogic/energy/reading/{device_type}/{device_name}
	TopicPrefixReading = "graylogic/energy/reading"
)

// Topics provides builders for the service's MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase
// and in consumer documentation.
//
//	topics := mqtt.Topics{}
//	readingTopic := topics.Reading("plug", "plug-lounge")
//	// Returns: "graylogic/energy/reading/plug/plug-lounge"
type Topics struct{}

// Reading returns the topic one device's readings publish to.
//
// Example: graylogic/energy/reading/plug/plug-lounge
func (Topics) Reading(deviceType, deviceName string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixReading, deviceType, deviceName)
}

// Status returns the retained availability topic.
//
// Carries "online" while the service is connected and "offline" after a
// graceful shutdown or broker-delivered last will.
//
// Example: graylogic/energy/status
func (Topics) Status() string {
	return fmt.Sprintf("%s/status", TopicPrefix)
}

// AllReadings returns a pattern matching every reading topic, for
// consumers that want the full stream.
//
// Pattern: graylogic/energy/reading/+/+
func (Topics) AllReadings() string {
	return fmt.Sprintf("%s/+/+", TopicPrefixReading)
}

// TypeReadings returns a pattern matching all readings of one device
// type.
//
// Pattern: graylogic/energy/reading/plug/+
func (Topics) TypeReadings(deviceType string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixReading, deviceType)
}
