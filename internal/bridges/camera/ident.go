package camera

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"
)

// maxIDLength is the longest node address the controller accepts.
const maxIDLength = 14

// motionSuffix is appended to a camera id to form its motion entity address.
const motionSuffix = "m"

const invalidIDChars = "<>`~!@#$%^&*(){}[]?/\\;:\"'"

// SanitizeID lowercases id, strips characters the controller rejects in
// node addresses and truncates the result to 14 characters.
func SanitizeID(id string) string {
	id = strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidIDChars, r) {
			return -1
		}
		return r
	}, strings.ToLower(id))

	if len(id) > maxIDLength {
		id = id[:maxIDLength]
	}
	return id
}

// IDFromSerial derives a camera id from a hardware serial number using its
// last 14 characters.
func IDFromSerial(serial string) string {
	serial = strings.TrimSpace(serial)
	if len(serial) > maxIDLength {
		serial = serial[len(serial)-maxIDLength:]
	}
	return SanitizeID(serial)
}

// MotionAddress returns the address of the motion entity owned by camera id.
func MotionAddress(id string) string {
	return id + motionSuffix
}

// IPToLong converts a dotted IPv4 address to its big-endian integer form.
func IPToLong(ip string) (uint32, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil || !addr.Is4() {
		return 0, fmt.Errorf("%w: ipv4 address %q", ErrInvalidValue, ip)
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), nil
}

// LongToIP is the inverse of IPToLong.
func LongToIP(v uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b).String()
}

// ParseShortVersion extracts the comparable "minor.patch" number from a
// four-part Foscam system version such as "0.37.2.36" (giving 2.36),
// rounded to two decimals.
func ParseShortVersion(raw string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 4 {
		return 0, false
	}
	minor, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, false
	}
	patch, err := strconv.Atoi(parts[3])
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(fmt.Sprintf("%d.%d", minor, patch), 64)
	if err != nil {
		return 0, false
	}
	return math.Round(v*100) / 100, true
}

// ParseLeadingVersion parses the first two dotted components of raw as a
// number, e.g. "2.420.AC00.18.R" gives 2.42.
func ParseLeadingVersion(raw string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(parts[0]+"."+parts[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// AuthModeForVersion selects the auth mode for an MJPEG firmware version.
// Firmware after x.x.2.52 requires digest.
func AuthModeForVersion(raw string) AuthMode {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 4 {
		return AuthBasic
	}
	minor, err1 := strconv.Atoi(parts[2])
	patch, err2 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil {
		return AuthBasic
	}
	if minor >= 2 && patch > 52 {
		return AuthDigest
	}
	return AuthBasic
}
