package camera

import "errors"

// Domain errors for the camera bridge package.
var (
	// ErrUnreachable is returned when a camera does not answer, or when a
	// write is attempted while the camera is not responding.
	ErrUnreachable = errors.New("camera: device unreachable")

	// ErrProtocol is returned when a camera answers with a non-success
	// status or a body that cannot be parsed.
	ErrProtocol = errors.New("camera: protocol error")

	// ErrAuthFailure is returned when a camera rejects the credentials.
	ErrAuthFailure = errors.New("camera: authentication failed")

	// ErrConfig is returned for unusable static camera entries.
	ErrConfig = errors.New("camera: invalid configuration")

	// ErrUnknownVendor is returned for a discovery record or static entry
	// naming a vendor family the bridge has no adapter for.
	ErrUnknownVendor = errors.New("camera: unknown vendor tag")

	// ErrDeviceNotFound is returned when no camera matches an id or address.
	ErrDeviceNotFound = errors.New("camera: device not found")

	// ErrUnsupported is returned for attributes or commands the camera's
	// family or model does not support.
	ErrUnsupported = errors.New("camera: not supported")

	// ErrInvalidValue is returned when a written value is out of range.
	ErrInvalidValue = errors.New("camera: invalid value")

	// ErrMalformedNotification is returned for inbound notification bytes
	// that do not contain a motion request.
	ErrMalformedNotification = errors.New("camera: malformed notification")
)
