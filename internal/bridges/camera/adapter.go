package camera

import (
	"context"
	"fmt"
	"strconv"
)

// StatusClass classifies the outcome of one vendor request.
type StatusClass int

const (
	StatusSuccess StatusClass = iota
	StatusBadRequest
	StatusNotFound
	StatusAuthFailure
	StatusUnknown
	StatusUnreachable
)

func (s StatusClass) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusBadRequest:
		return "bad_request"
	case StatusNotFound:
		return "not_found"
	case StatusAuthFailure:
		return "auth_failure"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

func (s StatusClass) sentinel() error {
	switch s {
	case StatusUnreachable:
		return ErrUnreachable
	case StatusAuthFailure:
		return ErrAuthFailure
	default:
		return ErrProtocol
	}
}

// AdapterError is the error returned by every Adapter method.
// It matches ErrUnreachable, ErrAuthFailure or ErrProtocol with errors.Is,
// depending on Class.
type AdapterError struct {
	Op    string
	Class StatusClass

	// Code is the HTTP status or vendor result code, when there was one.
	Code int
	Err  error
}

func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("camera: %s: %s", e.Op, e.Class)
	if e.Code != 0 {
		msg += " (" + strconv.Itoa(e.Code) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class.sentinel()}
	}
	return []error{e.Class.sentinel(), e.Err}
}

// Fields is one flat configuration or status record read from a camera.
type Fields map[string]string

// Clone returns an independent copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Int returns the integer value of key.
func (f Fields) Int(key string) (int, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Float returns the numeric value of key.
func (f Fields) Float(key string) (float64, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Identity is what a camera reports about itself when queried directly.
type Identity struct {
	Serial  string
	Name    string
	Model   string
	Version string
}

// Endpoint is how a camera is reached.
type Endpoint struct {
	Host string
	Port int
	Auth AuthMode
}

// Adapter performs the vendor-specific requests for one camera.
//
// Every method returns an *AdapterError on failure. Implementations must be
// safe for concurrent use, although the bridge serialises calls per camera.
type Adapter interface {
	GetStatus(ctx context.Context) (Fields, error)
	GetDeviceInfo(ctx context.Context) (Fields, error)
	GetMotionConfig(ctx context.Context) (Fields, error)

	// SetMotionConfig writes the complete motion detection record.
	SetMotionConfig(ctx context.Context, fields Fields) error
	GetIRLEDConfig(ctx context.Context) (Fields, error)
	SetIRLEDConfig(ctx context.Context, mode IRLEDMode) error
	GetMotionStatus(ctx context.Context) (MotionStatus, error)
	GotoPreset(ctx context.Context, preset int) error
	Reboot(ctx context.Context) error
	Identify(ctx context.Context) (Identity, error)
}

// AdapterFactory builds the adapter for a family and endpoint.
type AdapterFactory func(family VendorFamily, ep Endpoint) (Adapter, error)
