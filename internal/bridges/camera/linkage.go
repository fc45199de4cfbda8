package camera

import "strings"

// LinkageBit is a bit position in an HD2 motion linkage bitmask.
type LinkageBit uint

const (
	LinkRing     LinkageBit = 0
	LinkMail     LinkageBit = 1
	LinkSnapshot LinkageBit = 2
	LinkRecord   LinkageBit = 3
	LinkPush     LinkageBit = 7
)

// IsBit reports whether bit b is set in v.
func IsBit(v int, b LinkageBit) bool { return v&(1<<b) != 0 }

// SetBit returns v with bit b set.
func SetBit(v int, b LinkageBit) int { return v | 1<<b }

// ClearBit returns v with bit b cleared.
func ClearBit(v int, b LinkageBit) int { return v &^ (1 << b) }

// ToggleBit returns v with bit b flipped.
func ToggleBit(v int, b LinkageBit) int { return v ^ 1<<b }

// Capability is a set of optional camera features.
type Capability uint8

const (
	CapMotionStatus Capability = 1 << iota
	CapLinkage
	CapPush
	CapIRLED
	CapPresets
)

// Has reports whether every capability in want is present.
func (c Capability) Has(want Capability) bool { return c&want == want }

var familyCapabilities = map[VendorFamily]Capability{
	FamilyFoscamMJPEG: CapMotionStatus | CapIRLED | CapPresets,
	FamilyFoscamHD2:   CapMotionStatus | CapLinkage | CapIRLED | CapPresets,
	FamilyAmcrest:     CapPresets,
}

// modelCapabilities adds capabilities to models whose product name starts
// with the given prefix. Only these HD2 models carry the push-to-phone bit.
var modelCapabilities = []struct {
	family VendorFamily
	prefix string
	extra  Capability
}{
	{FamilyFoscamHD2, "fi9900", CapPush},
	{FamilyFoscamHD2, "fi9928", CapPush},
	{FamilyFoscamHD2, "fi9961", CapPush},
	{FamilyFoscamHD2, "c1", CapPush},
	{FamilyFoscamHD2, "r2", CapPush},
	{FamilyFoscamHD2, "r4", CapPush},
}

// Capabilities returns the feature set of a family and model.
func Capabilities(family VendorFamily, model string) Capability {
	caps := familyCapabilities[family]
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return caps
	}
	for _, m := range modelCapabilities {
		if m.family == family && strings.HasPrefix(model, m.prefix) {
			caps |= m.extra
		}
	}
	return caps
}
