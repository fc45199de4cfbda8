// Package influxdb records camera attribute history in InfluxDB.
//
// Every attribute the bridge reports is also written as a point in the
// camera_attributes measurement, tagged with the node address and the
// attribute name. Writes are non-blocking and batched by the client
// library; failures surface through the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteAttribute("00626e41d9a2", "GV8", 3)
package influxdb
