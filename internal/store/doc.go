// Package store persists camera identities and attribute values in SQLite
// and fans attribute reports out to MQTT, InfluxDB and WebSocket clients.
//
// SQLiteRepository is the camera.NodeStore used to rehydrate cameras on
// startup. Sink is the camera.AttributeSink: it keeps an in-memory cache of
// the last value of every attribute, warmed from the attribute_values table,
// so change detection survives restarts.
package store
