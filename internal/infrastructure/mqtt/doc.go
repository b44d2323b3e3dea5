// Package mqtt publishes dispatch outcomes to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The MQTT surface is strictly one-way: lumenctl publishes, it never
// subscribes. Home-automation controllers watching the lumen/# hierarchy
// see every command outcome without polling the dispatcher.
//
//	lumenctl → MQTT Broker → controllers / dashboards
//
// Topic layout (normalised unit ids):
//
//	lumen/dispatch/{unit_id}/result   terminal outcome per dispatch
//	lumen/device/{unit_id}/state      retained reachability state
//	lumen/discovery/found             devices seen during a sweep
//	lumen/system/status               dispatcher online/offline (retained)
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Outcome payloads never contain key material
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	obs := mqtt.NewOutcomePublisher(client, byte(cfg.MQTT.QoS), logger)
//	// pass obs to dispatch.Options.Observers
package mqtt
