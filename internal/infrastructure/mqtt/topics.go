package mqtt

import "fmt"

// Topic layout for the camera bridge. Everything follows the flat scheme
// graylogic/{category}/camera/{address}.
const (
	// TopicPrefix is the base for all topics.
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment used by every camera topic.
	Protocol = "camera"
)

// Topics provides builders for camera bridge topics.
//
//	topics := mqtt.Topics{}
//	topics.State("00626e41d9a2")   // graylogic/state/camera/00626e41d9a2
//	topics.AllCommands()           // graylogic/command/camera/+
type Topics struct{}

// State returns the topic for attribute updates of a node.
//
// Example: graylogic/state/camera/00626e41d9a2m
func (Topics) State(address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, address)
}

// Command returns the topic commands for one camera arrive on.
//
// Example: graylogic/command/camera/00626e41d9a2
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Ack returns the topic command acknowledgements are published to.
//
// Example: graylogic/ack/camera/00626e41d9a2
func (Topics) Ack(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Health returns the bridge health topic. It doubles as the LWT topic.
//
// Example: graylogic/health/camera
func (Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// Discovery returns the topic external scanners publish discovery results to.
//
// Example: graylogic/discovery/camera
func (Topics) Discovery() string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, Protocol)
}

// AllCommands returns a pattern matching commands for every camera.
//
// Pattern: graylogic/command/camera/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// AllStates returns a pattern matching every attribute update.
//
// Pattern: graylogic/state/camera/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, Protocol)
}
