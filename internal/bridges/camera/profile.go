package camera

import "strings"

// linkageField is the HD2 motion record field holding the linkage bitmask.
const linkageField = "linkage"

// fieldAttr maps an attribute to one field of a snapshot category.
// Writable attributes accept integers in [min, max].
type fieldAttr struct {
	attr     string
	category string
	field    string
	writable bool
	min, max int
}

// linkageAttr maps an attribute to one bit of the linkage field.
type linkageAttr struct {
	attr     string
	bit      LinkageBit
	requires Capability
}

type recordView struct {
	snapshot map[string]Fields
	auth     AuthMode
	caps     Capability
}

// profile is the per-family mapping between camera records and attributes.
type profile interface {
	fieldAttrs() []fieldAttr
	linkageAttrs() []linkageAttr

	// irAttr is the writable IR LED attribute, or "" when the family reports
	// none.
	irAttr() string
	derivedAttrs(v recordView) []attrValue

	versionOf(info Fields) string
	modelOf(info Fields) string
	shortVersion(raw string) (float64, bool)
	defaultAuth(rawVersion string) AuthMode

	// applyIRLED mirrors a successful IR LED write into the snapshot.
	applyIRLED(snapshot map[string]Fields, mode IRLEDMode)
}

func profileFor(family VendorFamily) profile {
	switch family {
	case FamilyFoscamHD2:
		return hd2Profile{}
	case FamilyAmcrest:
		return amcrestProfile{}
	default:
		return mjpegProfile{}
	}
}

// familyAttributes decodes the family-specific attributes from a record.
func familyAttributes(p profile, v recordView) []attrValue {
	var out []attrValue
	for _, fa := range p.fieldAttrs() {
		if n, ok := v.snapshot[fa.category].Float(fa.field); ok {
			out = append(out, attrValue{fa.attr, n})
		}
	}

	if linkage, ok := v.snapshot[catMotion].Int(linkageField); ok {
		for _, la := range p.linkageAttrs() {
			if !v.caps.Has(la.requires) {
				continue
			}
			out = append(out, attrValue{la.attr, boolValue(IsBit(linkage, la.bit))})
		}
	}

	return append(out, p.derivedAttrs(v)...)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Foscam MJPEG: CGI endpoints returning javascript variable lines.
type mjpegProfile struct{}

func (mjpegProfile) fieldAttrs() []fieldAttr {
	return []fieldAttr{
		{attr: "GV5", category: catIRLED, field: "led_mode"},
		{attr: "GV6", category: catMotion, field: "alarm_motion_armed", writable: true, min: 0, max: 1},
		{attr: "GV7", category: catMotion, field: "alarm_mail", writable: true, min: 0, max: 1},
		{attr: "GV8", category: catMotion, field: "alarm_motion_sensitivity", writable: true, min: 0, max: 9},
		{attr: "GV9", category: catMotion, field: "alarm_motion_compensation", writable: true, min: 0, max: 1},
		{attr: "GV13", category: catMotion, field: "alarm_upload_interval", writable: true, min: 0, max: 65535},
	}
}

func (mjpegProfile) linkageAttrs() []linkageAttr { return nil }
func (mjpegProfile) irAttr() string              { return "" }

func (mjpegProfile) derivedAttrs(v recordView) []attrValue {
	return []attrValue{{AttrMJPEGAuth, float64(v.auth)}}
}

func (mjpegProfile) versionOf(info Fields) string { return info["sys_ver"] }
func (mjpegProfile) modelOf(Fields) string        { return "" }

func (mjpegProfile) shortVersion(raw string) (float64, bool) { return ParseShortVersion(raw) }
func (mjpegProfile) defaultAuth(raw string) AuthMode         { return AuthModeForVersion(raw) }

func (mjpegProfile) applyIRLED(map[string]Fields, IRLEDMode) {}

// Foscam HD2: CGIProxy commands returning CGI_Result XML.
type hd2Profile struct{}

func (hd2Profile) fieldAttrs() []fieldAttr {
	return []fieldAttr{
		{attr: "GV6", category: catMotion, field: "isEnable", writable: true, min: 0, max: 1},
		{attr: "GV8", category: catMotion, field: "sensitivity", writable: true, min: 0, max: 4},
		{attr: "GV10", category: catMotion, field: "triggerInterval", writable: true, min: 0, max: 15},
		{attr: "GV13", category: catMotion, field: "snapInterval", writable: true, min: 1, max: 5},
	}
}

func (hd2Profile) linkageAttrs() []linkageAttr {
	return []linkageAttr{
		{attr: "GV0", bit: LinkRing},
		{attr: "GV7", bit: LinkMail},
		{attr: "GV14", bit: LinkSnapshot},
		{attr: "GV4", bit: LinkRecord},
		{attr: "GV15", bit: LinkPush, requires: CapPush},
	}
}

func (hd2Profile) irAttr() string { return "GV5" }

// derivedAttrs reports the IR LED state: auto, off, on or unknown.
func (hd2Profile) derivedAttrs(v recordView) []attrValue {
	state := IRLEDUnknown
	if mode, ok := v.snapshot[catIRLED].Int("mode"); ok {
		if mode == 0 {
			state = IRLEDAuto
		} else if led, ok := v.snapshot[catStatus].Int("infraLedState"); ok {
			state = IRLEDOff
			if led != 0 {
				state = IRLEDOn
			}
		}
	}
	return []attrValue{{"GV5", float64(state)}}
}

func (hd2Profile) versionOf(info Fields) string {
	if v := info["firmwareVer"]; v != "" {
		return v
	}
	return info["hardwareVer"]
}

func (hd2Profile) modelOf(info Fields) string { return strings.ToLower(info["productName"]) }

func (hd2Profile) shortVersion(raw string) (float64, bool) { return ParseShortVersion(raw) }
func (hd2Profile) defaultAuth(string) AuthMode             { return AuthBasic }

func (hd2Profile) applyIRLED(snapshot map[string]Fields, mode IRLEDMode) {
	if snapshot[catIRLED] == nil {
		snapshot[catIRLED] = Fields{}
	}
	if snapshot[catStatus] == nil {
		snapshot[catStatus] = Fields{}
	}
	switch mode {
	case IRLEDAuto:
		snapshot[catIRLED]["mode"] = "0"
	case IRLEDOff:
		snapshot[catIRLED]["mode"] = "1"
		snapshot[catStatus]["infraLedState"] = "0"
	case IRLEDOn:
		snapshot[catIRLED]["mode"] = "1"
		snapshot[catStatus]["infraLedState"] = "1"
	}
}

// Amcrest: configManager and magicBox CGIs returning key=value lines.
type amcrestProfile struct{}

func (amcrestProfile) fieldAttrs() []fieldAttr {
	return []fieldAttr{
		{attr: "GV5", category: catMotion, field: "Enable", writable: true, min: 0, max: 1},
		{attr: "GV6", category: catMotion, field: "EventHandler.RecordEnable", writable: true, min: 0, max: 1},
		{attr: "GV7", category: catMotion, field: "EventHandler.MailEnable", writable: true, min: 0, max: 1},
		{attr: "GV8", category: catMotion, field: "EventHandler.SnapshotEnable", writable: true, min: 0, max: 1},
		{attr: "GV9", category: catMotion, field: "EventHandler.SnapshotTimes", writable: true, min: 0, max: 100},
	}
}

func (amcrestProfile) linkageAttrs() []linkageAttr         { return nil }
func (amcrestProfile) irAttr() string                      { return "" }
func (amcrestProfile) derivedAttrs(recordView) []attrValue { return nil }

// versionOf strips the build suffix from e.g. "2.420.AC00.18.R,build:2017-05-26".
func (amcrestProfile) versionOf(info Fields) string {
	v, _, _ := strings.Cut(info["version"], ",")
	return strings.TrimSpace(v)
}

func (amcrestProfile) modelOf(info Fields) string { return strings.ToLower(info["deviceType"]) }

func (amcrestProfile) shortVersion(raw string) (float64, bool) { return ParseLeadingVersion(raw) }
func (amcrestProfile) defaultAuth(string) AuthMode             { return AuthDigest }

func (amcrestProfile) applyIRLED(map[string]Fields, IRLEDMode) {}
