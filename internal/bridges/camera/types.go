package camera

import (
	"fmt"
	"strings"
)

// VendorFamily identifies the camera protocol family.
type VendorFamily string

const (
	FamilyFoscamMJPEG VendorFamily = "foscam_mjpeg"
	FamilyFoscamHD2   VendorFamily = "foscam_hd2"
	FamilyAmcrest     VendorFamily = "amcrest"
)

// ParseVendorTag maps a discovery motion-type tag or a config type string
// to a vendor family. Matching is case-insensitive.
func ParseVendorTag(tag string) (VendorFamily, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "mjpeg", string(FamilyFoscamMJPEG):
		return FamilyFoscamMJPEG, nil
	case "hd2", string(FamilyFoscamHD2):
		return FamilyFoscamHD2, nil
	case "amcrest":
		return FamilyAmcrest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVendor, tag)
	}
}

// AuthMode is the HTTP authentication scheme used for a camera.
// The numeric values are reported as an attribute.
type AuthMode int

const (
	AuthBasic  AuthMode = 0
	AuthDigest AuthMode = 1
)

func (a AuthMode) String() string {
	if a == AuthDigest {
		return "digest"
	}
	return "basic"
}

// ParseAuthMode parses "basic" or "digest".
func ParseAuthMode(s string) (AuthMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic":
		return AuthBasic, nil
	case "digest":
		return AuthDigest, nil
	default:
		return AuthBasic, fmt.Errorf("%w: auth mode %q", ErrInvalidValue, s)
	}
}

// Reachability is the tri-state responding flag of a camera.
type Reachability int

const (
	ReachUnknown Reachability = iota
	ReachDown
	ReachUp
)

func (r Reachability) String() string {
	switch r {
	case ReachUp:
		return "responding"
	case ReachDown:
		return "not_responding"
	default:
		return "unknown"
	}
}

// MotionStatus is the state of a camera's motion entity.
type MotionStatus int

const (
	MotionOff         MotionStatus = 0
	MotionOn          MotionStatus = 1
	MotionUnknown     MotionStatus = 2
	MotionUnsupported MotionStatus = 3
)

func (m MotionStatus) String() string {
	switch m {
	case MotionOff:
		return "off"
	case MotionOn:
		return "on"
	case MotionUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// IRLEDMode is the infrared illuminator mode. IRLEDUnknown is only ever
// reported, never written.
type IRLEDMode int

const (
	IRLEDAuto    IRLEDMode = 0
	IRLEDOff     IRLEDMode = 1
	IRLEDOn      IRLEDMode = 2
	IRLEDUnknown IRLEDMode = 3
)

// RawDeviceInfo is one discovery record as produced by a network scanner.
type RawDeviceInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	SysVersion string `json:"sys_version"`
	Tag        string `json:"type"`
}

// StaticEntry is a manually configured camera that is identified by
// querying it directly instead of through discovery.
type StaticEntry struct {
	Type string
	Host string
	Port int

	// Auth optionally pins the authentication mode ("basic" or "digest").
	Auth string
}

// Node is the persisted identity of a camera used for rehydration.
// Host, port and auth mode live in the attribute store.
type Node struct {
	ID           string
	Name         string
	Family       VendorFamily
	Model        string
	AuthOverride *AuthMode
}

// Attribute names shared by every family. The remaining GVn numbers are
// assigned per family.
const (
	AttrResponding   = "ST"
	AttrIP           = "GV2"
	AttrPort         = "GV3"
	AttrShortVersion = "GV11"

	// AttrMJPEGAuth holds the auth mode of MJPEG cameras only.
	AttrMJPEGAuth = "GV10"

	// ControllerAddress is the node address of the bridge itself.
	ControllerAddress = "controller"

	AttrControllerCameras = "GV3"
	AttrControllerFast    = "GV6"
	AttrControllerSlow    = "GV7"
)
