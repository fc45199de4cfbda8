package camera

import (
	"fmt"
	"regexp"
)

// motionRequest matches the request line a camera sends on motion, e.g.
// "GET /motion/00626e41d9a2m HTTP/1.0".
var motionRequest = regexp.MustCompile(`^(?i)GET /motion/([^ ]*) `)

// AddressLookup resolves a node address to its camera.
type AddressLookup interface {
	FindByAddress(addr string) (*Device, bool)
}

// ParseMotionAddress extracts the address from a motion notification.
func ParseMotionAddress(data []byte) (string, error) {
	m := motionRequest.FindSubmatch(data)
	if m == nil || len(m[1]) == 0 {
		return "", ErrMalformedNotification
	}
	return string(m[1]), nil
}

// NotificationBridge turns pushed motion notifications into motion state.
type NotificationBridge struct {
	lookup AddressLookup
	logger Logger
}

// NewNotificationBridge creates a NotificationBridge.
func NewNotificationBridge(lookup AddressLookup, logger Logger) *NotificationBridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &NotificationBridge{lookup: lookup, logger: logger}
}

// HandleNotification dispatches one inbound notification. The motion
// entity of the addressed camera is set On and reported even if it was
// already On.
func (n *NotificationBridge) HandleNotification(data []byte) error {
	addr, err := ParseMotionAddress(data)
	if err != nil {
		n.logger.Warn("ignoring malformed notification", "bytes", len(data))
		return err
	}

	d, ok := n.lookup.FindByAddress(addr)
	if !ok {
		n.logger.Warn("motion notification for unknown address", "address", addr)
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}

	motion := d.Motion()
	if motion.Status() == MotionUnsupported {
		n.logger.Debug("motion notification for camera without motion support", "device_id", d.ID())
		return nil
	}

	motion.Notify(MotionOn)
	n.logger.Info("motion notification", "device_id", d.ID(), "address", motion.Address())
	return nil
}
