// Package mqtt connects the camera bridge to the Gray Logic MQTT bus.
//
// The bridge publishes retained attribute state per node, command acks and
// a retained health document, and subscribes to camera commands and
// discovery results:
//
//	graylogic/state/camera/{address}     retained attribute updates
//	graylogic/command/camera/{device_id} inbound commands
//	graylogic/ack/camera/{device_id}     command results
//	graylogic/health/camera              bridge health, also the LWT topic
//	graylogic/discovery/camera           discovery records from scanners
//
// Subscriptions survive reconnects; handlers are wrapped with panic
// recovery.
package mqtt
