package camera

import (
	"context"
	"errors"
	"time"
)

// MQTT message types exchanged between Gray Logic Core and the camera bridge.

// ProtocolName identifies this bridge in acknowledgements and state messages.
const ProtocolName = "camera"

// CommandMessage is sent from Core to the bridge to operate a camera.
// Topic: graylogic/command/camera/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgements.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the camera id. When empty the last topic segment is used.
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g. "set_attribute", "reboot").
	Command string `json:"command"`

	// Parameters contains command-specific values, e.g.
	//   {"attribute": "GV8", "value": 3} for set_attribute
	//   {"mode": "auto"} for set_ir_led
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("api", "automation", ...).
	Source string `json:"source"`
}

// AckStatus represents the acknowledgement status of a command.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
	AckTimeout  AckStatus = "timeout"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/camera/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// ErrorCode maps a command error to its acknowledgement code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, ErrDeviceNotFound):
		return ErrCodeNotConfigured
	case errors.Is(err, ErrUnreachable):
		return ErrCodeDeviceUnreachable
	case errors.Is(err, ErrUnsupported):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidValue):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrProtocol), errors.Is(err, ErrAuthFailure):
		return ErrCodeProtocolError
	default:
		return ErrCodeBridgeError
	}
}

// StateMessage carries one reported attribute value.
// Topic: graylogic/state/camera/{address}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the node address: a camera id or a motion address.
	DeviceID  string             `json:"device_id"`
	Timestamp time.Time          `json:"timestamp"`
	State     map[string]float64 `json:"state"`
	Protocol  string             `json:"protocol"`
	Address   string             `json:"address"`
}

// DiscoveryMessage delivers the result of a network scan.
// Topic: graylogic/discovery/camera
type DiscoveryMessage struct {
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source,omitempty"`
	Devices   []RawDeviceInfo `json:"devices"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthOffline   HealthStatus = "offline"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/camera
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// DevicesManaged is the number of known cameras.
	DevicesManaged int `json:"devices_managed"`

	// DevicesResponding is how many answered their last probe.
	DevicesResponding int `json:"devices_responding"`

	// Heartbeat flips on every report so consumers can detect a stalled
	// bridge even when nothing else changes.
	Heartbeat bool `json:"heartbeat"`

	Reason string `json:"reason,omitempty"`
}

// NewAckMessage creates a successful acknowledgement for cmd.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  ProtocolName,
	}
}

// NewAckError creates a failed acknowledgement for cmd.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates the state message for one attribute report.
func NewStateMessage(address, attribute string, value float64) StateMessage {
	return StateMessage{
		DeviceID:  address,
		Timestamp: time.Now().UTC(),
		State:     map[string]float64{attribute: value},
		Protocol:  ProtocolName,
		Address:   address,
	}
}
