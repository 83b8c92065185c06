// Package mqtt broadcasts persisted readings over MQTT.
//
// This package manages:
//   - Connection to a Mosquitto broker with auto-reconnect
//   - Per-device reading publication with QoS guarantees
//   - Retained availability status with Last Will and Testament (LWT)
//   - Connection health monitoring
//
// # Architecture
//
// The service is a pure publisher. SQLite remains the system of record;
// MQTT gives dashboards and automations a live feed of the same records
// without polling the database.
//
//	Energy Poller → MQTT Broker → Dashboards / Automations
//
// Each persisted record goes out as a JSON object on
// graylogic/energy/reading/{device_type}/{device_name}, and the
// retained graylogic/energy/status topic carries "online"/"offline" so
// consumers can tell a quiet poller from a dead one. There is no
// subscription surface: nothing on the bus can steer the poller.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff per config (initial_delay..max_delay)
//   - Volume: one small JSON payload per device per poll cycle
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Wrap as an orchestrator sink
//	sink := mqtt.NewReadingPublisher(client)
//
//	// Or publish directly
//	topic := mqtt.Topics{}.Reading("plug", "plug-lounge")
//	client.Publish(topic, payload, 1, false)
package mqtt
