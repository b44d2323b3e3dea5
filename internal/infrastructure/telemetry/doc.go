// Package telemetry records dispatch metrics in InfluxDB.
//
// This package manages:
//   - Connection to InfluxDB v2 with token authentication
//   - Non-blocking batched writes of dispatch outcomes
//   - Connection health monitoring
//
// # Measurements
//
//	dispatch    one point per device per dispatch call
//	            tags:   unit_id, transport, state, kind
//	            fields: latency_ms, attempts
//	discovery   one point per discovery sweep
//	            fields: found, window_ms
//
// # Write Semantics
//
// Writes are batched and asynchronous. A point handed to the write API
// is not on the wire yet; call Flush before process exit so short CLI
// runs lose nothing. Async write failures surface through SetOnError.
//
// # Usage
//
//	client, err := telemetry.Connect(cfg.Telemetry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	rec := telemetry.NewRecorder(client)
//	// pass rec to dispatch.Options.Observers
package telemetry
