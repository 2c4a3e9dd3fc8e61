// Package influxdb writes automation telemetry to InfluxDB v2.
//
// Points are batched by the client library and flushed on an interval or
// when the batch fills, so writes never block the event loop.
//
// # Configuration
//
//	influxdb:
//	  enabled: true
//	  url: "http://localhost:8086"
//	  token: ""          # set ILLUMINATE_INFLUXDB_TOKEN
//	  org: "home"
//	  bucket: "automation"
//	  batch_size: 100
//	  flush_interval: 10 # seconds
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WritePoint("door_event",
//	    map[string]string{"automation": "front", "kind": "door_opened"},
//	    map[string]any{"count": 1})
package influxdb
