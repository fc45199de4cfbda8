package camera

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Snapshot categories. Each query replaces its category as a whole.
const (
	catStatus  = "status"
	catDevInfo = "devinfo"
	catMotion  = "motion_detect"
	catIRLED   = "irled"
)

// deviceEnv is the collaborators shared by every device of a reconciler.
type deviceEnv struct {
	sink    AttributeSink
	logger  Logger
	timeout time.Duration
	clock   Clock
}

type attrValue struct {
	name  string
	value float64
}

// Device is the in-memory record of one camera.
//
// Three locks guard a device. opMu serialises adapter sequences (polls,
// writes and commands) so that two polls of the same camera never overlap.
// reportMu is held from a state change until its AttributeSink report
// returns, so the sink sees changes in the order they were made. mu guards
// the record fields and is never held across an adapter call or an
// AttributeSink call. Lock order is opMu, reportMu, mu.
type Device struct {
	id      string
	family  VendorFamily
	profile profile
	env     *deviceEnv
	motion  *MotionEntity

	opMu     sync.Mutex
	reportMu sync.Mutex

	mu              sync.Mutex
	name            string
	host            string
	port            int
	auth            AuthMode
	authOverride    *AuthMode
	model           string
	firmware        string
	shortVersion    float64
	hasShortVersion bool
	responding      Reachability
	snapshot        map[string]Fields
	reported        map[string]float64
	fullReport      bool
	pending         map[string]Command
	adapter         Adapter
	lastPoll        time.Time
}

func newDevice(id string, family VendorFamily, env *deviceEnv) *Device {
	d := &Device{
		id:         id,
		family:     family,
		profile:    profileFor(family),
		env:        env,
		snapshot:   make(map[string]Fields),
		reported:   make(map[string]float64),
		pending:    make(map[string]Command),
		fullReport: true,
	}

	status := MotionUnknown
	if !Capabilities(family, "").Has(CapMotionStatus) {
		status = MotionUnsupported
	}
	d.motion = &MotionEntity{parent: d, address: MotionAddress(id), status: status}
	return d
}

// ID returns the camera's stable id.
func (d *Device) ID() string { return d.id }

// Family returns the vendor family.
func (d *Device) Family() VendorFamily { return d.family }

// Motion returns the camera's motion entity.
func (d *Device) Motion() *MotionEntity { return d.motion }

// Name returns the display name.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Endpoint returns the current network coordinates.
func (d *Device) Endpoint() Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endpointLocked()
}

func (d *Device) endpointLocked() Endpoint {
	return Endpoint{Host: d.host, Port: d.port, Auth: d.auth}
}

// Responding returns the result of the most recent reachability probe.
func (d *Device) Responding() Reachability {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.responding
}

// Capabilities returns the feature set for the camera's family and model.
func (d *Device) Capabilities() Capability {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Capabilities(d.family, d.model)
}

// FirmwareVersion returns the raw firmware string and its short form.
func (d *Device) FirmwareVersion() (raw string, short float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmware, d.shortVersion
}

// Snapshot returns a copy of one snapshot category.
func (d *Device) Snapshot(category string) Fields {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot[category].Clone()
}

// PendingWrites returns the keys of writes awaiting retry, sorted.
func (d *Device) PendingWrites() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *Device) currentAdapter() Adapter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adapter
}

func (d *Device) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.env.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.env.timeout)
}

func (d *Device) logger() Logger {
	return d.env.logger
}

func (d *Device) setFirmwareLocked(raw string) {
	d.firmware = raw
	d.shortVersion, d.hasShortVersion = d.profile.shortVersion(raw)
}

// storeLocked replaces a snapshot category. A partial result is merged into
// the existing category instead.
func (d *Device) storeLocked(category string, fields Fields, partial bool) {
	if !partial || d.snapshot[category] == nil {
		d.snapshot[category] = fields.Clone()
		return
	}
	for k, v := range fields {
		d.snapshot[category][k] = v
	}
}

// attributesLocked computes every reportable attribute from the record.
func (d *Device) attributesLocked() []attrValue {
	var out []attrValue

	switch d.responding {
	case ReachUp:
		out = append(out, attrValue{AttrResponding, 1})
	case ReachDown:
		out = append(out, attrValue{AttrResponding, 0})
	}
	if ip, err := IPToLong(d.host); err == nil {
		out = append(out, attrValue{AttrIP, float64(ip)})
	}
	if d.port > 0 {
		out = append(out, attrValue{AttrPort, float64(d.port)})
	}
	if d.hasShortVersion {
		out = append(out, attrValue{AttrShortVersion, d.shortVersion})
	}

	return append(out, familyAttributes(d.profile, recordView{
		snapshot: d.snapshot,
		auth:     d.auth,
		caps:     Capabilities(d.family, d.model),
	})...)
}

// report pushes changed attributes to the sink, or all of them when force
// is set.
func (d *Device) report(force bool) int {
	d.reportMu.Lock()
	defer d.reportMu.Unlock()

	d.mu.Lock()
	values := d.attributesLocked()
	out := make([]attrValue, 0, len(values))
	for _, v := range values {
		if prev, ok := d.reported[v.name]; ok && prev == v.value && !force {
			continue
		}
		d.reported[v.name] = v.value
		out = append(out, v)
	}
	d.mu.Unlock()

	for _, v := range out {
		d.env.sink.SetValue(d.id, v.name, v.value, force)
	}
	return len(out)
}

// markUnreachable records a failed probe and reports the responding
// attribute if it changed. MJPEG cameras have no motion query, so their
// cached motion status goes back to Unknown; other families keep theirs
// until the next motion poll replaces it.
func (d *Device) markUnreachable(err error) {
	d.reportMu.Lock()
	d.mu.Lock()
	was := d.responding
	d.responding = ReachDown
	prev, seen := d.reported[AttrResponding]
	changed := !seen || prev != 0
	if changed {
		d.reported[AttrResponding] = 0
	}
	d.mu.Unlock()

	if was != ReachDown {
		d.logger().Warn("camera not responding", "device_id", d.id, "error", err)
	}
	if changed {
		d.env.sink.SetValue(d.id, AttrResponding, 0, false)
	}
	d.reportMu.Unlock()

	if d.family == FamilyFoscamMJPEG {
		d.motion.invalidate()
	}
}

// DeviceView is a point-in-time copy of a camera's record.
type DeviceView struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Family          VendorFamily       `json:"family"`
	Model           string             `json:"model,omitempty"`
	Host            string             `json:"host"`
	Port            int                `json:"port"`
	Auth            string             `json:"auth"`
	FirmwareVersion string             `json:"firmware_version,omitempty"`
	ShortVersion    float64            `json:"short_version,omitempty"`
	Responding      string             `json:"responding"`
	Motion          string             `json:"motion"`
	MotionAddress   string             `json:"motion_address"`
	Attributes      map[string]float64 `json:"attributes"`
	PendingWrites   []string           `json:"pending_writes,omitempty"`
	LastPoll        *time.Time         `json:"last_poll,omitempty"`
}

// View returns a copy of the record suitable for serialisation.
func (d *Device) View() DeviceView {
	motion := d.motion.Status()
	pending := d.PendingWrites()

	d.mu.Lock()
	defer d.mu.Unlock()

	attrs := make(map[string]float64, len(d.reported))
	for k, v := range d.reported {
		attrs[k] = v
	}
	v := DeviceView{
		ID:              d.id,
		Name:            d.name,
		Family:          d.family,
		Model:           d.model,
		Host:            d.host,
		Port:            d.port,
		Auth:            d.auth.String(),
		FirmwareVersion: d.firmware,
		ShortVersion:    d.shortVersion,
		Responding:      d.responding.String(),
		Motion:          motion.String(),
		MotionAddress:   d.motion.address,
		Attributes:      attrs,
		PendingWrites:   pending,
	}
	if !d.lastPoll.IsZero() {
		t := d.lastPoll
		v.LastPoll = &t
	}
	return v
}
