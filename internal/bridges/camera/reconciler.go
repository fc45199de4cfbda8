package camera

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultHTTPPort       = 80
	defaultRequestTimeout = 5 * time.Second
)

// NodeStore persists camera identities across restarts.
type NodeStore interface {
	SaveNode(ctx context.Context, node Node) error
	ListNodes(ctx context.Context) ([]Node, error)
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	// Factory builds vendor adapters (required).
	Factory AdapterFactory

	// Sink receives attribute reports and supplies persisted values for
	// rehydration (required).
	Sink AttributeSink

	// Nodes persists camera identities (optional).
	Nodes NodeStore

	Logger Logger
	Clock  Clock

	// Timeout bounds each adapter call. Defaults to 5s.
	Timeout time.Duration
}

// ReconcileSummary counts the outcome of one reconcile pass.
type ReconcileSummary struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

func (s *ReconcileSummary) skip(err error) {
	s.Skipped++
	s.Errors = append(s.Errors, err.Error())
}

// Reconciler owns the set of known cameras.
//
// It matches discovered and statically configured cameras against known
// ones by id, updating network coordinates in place and creating records
// for new ids. Records are never removed.
type Reconciler struct {
	mu      sync.RWMutex
	devices map[string]*Device

	env     *deviceEnv
	factory AdapterFactory
	nodes   NodeStore

	onCreate   func(*Device)
	onCreateMu sync.RWMutex
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts ReconcilerOptions) (*Reconciler, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("%w: adapter factory is required", ErrConfig)
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("%w: attribute sink is required", ErrConfig)
	}

	env := &deviceEnv{
		sink:    opts.Sink,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		clock:   opts.Clock,
	}
	if env.logger == nil {
		env.logger = noopLogger{}
	}
	if env.timeout <= 0 {
		env.timeout = defaultRequestTimeout
	}
	if env.clock == nil {
		env.clock = RealClock()
	}

	return &Reconciler{
		devices: make(map[string]*Device),
		env:     env,
		factory: opts.Factory,
		nodes:   opts.Nodes,
	}, nil
}

// SetOnCreate registers the hook run for every newly registered camera,
// typically its startup probe.
func (r *Reconciler) SetOnCreate(fn func(*Device)) {
	r.onCreateMu.Lock()
	r.onCreate = fn
	r.onCreateMu.Unlock()
}

func (r *Reconciler) created(d *Device) {
	r.onCreateMu.RLock()
	fn := r.onCreate
	r.onCreateMu.RUnlock()
	if fn != nil {
		fn(d)
	}
}

func (r *Reconciler) logger() Logger { return r.env.logger }

// Reconcile merges discovery records into the known cameras.
func (r *Reconciler) Reconcile(ctx context.Context, infos []RawDeviceInfo) ReconcileSummary {
	var summary ReconcileSummary
	for _, info := range infos {
		created, err := r.reconcileOne(ctx, info, nil)
		switch {
		case err != nil:
			summary.skip(err)
		case created:
			summary.Created++
		default:
			summary.Updated++
		}
	}
	return summary
}

func (r *Reconciler) reconcileOne(ctx context.Context, info RawDeviceInfo, override *AuthMode) (bool, error) {
	family, err := ParseVendorTag(info.Tag)
	if err != nil {
		r.logger().Error("camera skipped: unrecognised vendor",
			"device_id", info.ID,
			"tag", info.Tag,
		)
		return false, err
	}

	id := SanitizeID(info.ID)
	if id == "" {
		return false, fmt.Errorf("%w: discovery record without id", ErrConfig)
	}
	r.mu.Lock()
	if d, ok := r.devices[id]; ok {
		r.mu.Unlock()
		if d.family != family {
			r.logger().Warn("camera reported a different vendor family, keeping the original",
				"device_id", id,
				"family", d.family,
				"reported", family,
			)
		}
		return false, r.update(ctx, d, info, override)
	}

	port := info.Port
	if port <= 0 {
		port = defaultHTTPPort
	}

	d := newDevice(id, family, r.env)
	d.name = info.Name
	d.host = info.IP
	d.port = port
	d.authOverride = override
	if info.SysVersion != "" {
		d.setFirmwareLocked(info.SysVersion)
	}
	d.auth = d.resolveAuthLocked()

	adapter, err := r.factory(family, d.endpointLocked())
	if err != nil {
		r.mu.Unlock()
		return false, fmt.Errorf("camera %s: building adapter: %w", id, err)
	}
	d.adapter = adapter
	r.devices[id] = d
	r.mu.Unlock()

	r.logger().Info("camera added",
		"device_id", id,
		"name", info.Name,
		"family", family,
		"host", info.IP,
		"port", port,
		"auth", d.auth.String(),
	)
	r.persist(ctx, d)
	r.created(d)
	return true, nil
}

// update applies rediscovered coordinates without touching the snapshot.
// Empty fields in info keep the current values.
func (r *Reconciler) update(ctx context.Context, d *Device, info RawDeviceInfo, override *AuthMode) error {
	d.mu.Lock()
	if info.Name != "" {
		d.name = info.Name
	}
	if override != nil {
		d.authOverride = override
	}
	if info.SysVersion != "" && info.SysVersion != d.firmware {
		d.setFirmwareLocked(info.SysVersion)
	}
	before := d.endpointLocked()
	if info.IP != "" {
		d.host = info.IP
	}
	if info.Port > 0 {
		d.port = info.Port
	}
	d.auth = d.resolveAuthLocked()
	after := d.endpointLocked()
	d.mu.Unlock()

	if after != before {
		if err := r.rebuildAdapter(d, after); err != nil {
			return err
		}
		r.logger().Info("camera endpoint changed",
			"device_id", d.id,
			"host", after.Host,
			"port", after.Port,
			"auth", after.Auth.String(),
		)
	}
	r.persist(ctx, d)
	return nil
}

func (r *Reconciler) rebuildAdapter(d *Device, ep Endpoint) error {
	adapter, err := r.factory(d.family, ep)
	if err != nil {
		return fmt.Errorf("camera %s: building adapter: %w", d.id, err)
	}
	d.mu.Lock()
	d.adapter = adapter
	d.mu.Unlock()
	return nil
}

// resolveAuthLocked applies the auth rule: an operator override wins,
// otherwise the family default for the current firmware.
func (d *Device) resolveAuthLocked() AuthMode {
	if d.authOverride != nil {
		return *d.authOverride
	}
	return d.profile.defaultAuth(d.firmware)
}

func (r *Reconciler) persist(ctx context.Context, d *Device) {
	if r.nodes == nil {
		return
	}

	d.mu.Lock()
	node := Node{
		ID:           d.id,
		Name:         d.name,
		Family:       d.family,
		Model:        d.model,
		AuthOverride: d.authOverride,
	}
	d.mu.Unlock()

	if err := r.nodes.SaveNode(ctx, node); err != nil {
		r.logger().Error("failed to persist camera node", "device_id", d.id, "error", err)
	}
}

// Rehydrate registers the cameras persisted by a previous run. Network
// coordinates come from the last reported attribute values. Rehydrated
// cameras are not trusted as responding until probed.
func (r *Reconciler) Rehydrate(ctx context.Context) (int, error) {
	if r.nodes == nil {
		return 0, nil
	}

	nodes, err := r.nodes.ListNodes(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading camera nodes: %w", err)
	}

	sink := r.env.sink
	count := 0
	for _, n := range nodes {
		if _, ok := r.Get(n.ID); ok {
			continue
		}
		if _, err := ParseVendorTag(string(n.Family)); err != nil {
			r.logger().Error("persisted camera has unknown family", "device_id", n.ID, "family", n.Family)
			continue
		}

		ipLong, ok := sink.LastValue(n.ID, AttrIP)
		if !ok {
			r.logger().Warn("persisted camera has no address, waiting for discovery", "device_id", n.ID)
			continue
		}

		d := newDevice(n.ID, n.Family, r.env)
		d.name = n.Name
		d.model = n.Model
		d.host = LongToIP(uint32(ipLong))
		d.port = defaultHTTPPort
		if port, ok := sink.LastValue(n.ID, AttrPort); ok && port > 0 {
			d.port = int(port)
		}
		if short, ok := sink.LastValue(n.ID, AttrShortVersion); ok {
			d.shortVersion, d.hasShortVersion = short, true
		}
		d.authOverride = n.AuthOverride
		d.auth = d.resolveAuthLocked()
		if n.AuthOverride == nil && n.Family == FamilyFoscamMJPEG {
			if mode, ok := sink.LastValue(n.ID, AttrMJPEGAuth); ok {
				d.auth = AuthMode(mode)
			}
		}

		adapter, err := r.factory(n.Family, d.endpointLocked())
		if err != nil {
			r.logger().Error("failed to build adapter for persisted camera", "device_id", n.ID, "error", err)
			continue
		}
		d.adapter = adapter

		r.mu.Lock()
		if _, exists := r.devices[n.ID]; exists {
			r.mu.Unlock()
			continue
		}
		r.devices[n.ID] = d
		r.mu.Unlock()

		count++
		r.created(d)
	}

	r.logger().Info("cameras rehydrated", "count", count)
	return count, nil
}

// AddStatic identifies each configured camera by querying it and then
// reconciles it like a discovered one. Bad entries are skipped.
func (r *Reconciler) AddStatic(ctx context.Context, entries []StaticEntry) ReconcileSummary {
	var summary ReconcileSummary
	for _, entry := range entries {
		info, override, err := r.identify(ctx, entry)
		if err != nil {
			r.logger().Error("static camera skipped",
				"host", entry.Host,
				"type", entry.Type,
				"error", err,
			)
			summary.skip(err)
			continue
		}

		created, err := r.reconcileOne(ctx, info, override)
		switch {
		case err != nil:
			summary.skip(err)
		case created:
			summary.Created++
		default:
			summary.Updated++
		}
	}
	return summary
}

func (r *Reconciler) identify(ctx context.Context, entry StaticEntry) (RawDeviceInfo, *AuthMode, error) {
	if strings.TrimSpace(entry.Host) == "" {
		return RawDeviceInfo{}, nil, fmt.Errorf("%w: static camera requires host", ErrConfig)
	}
	if strings.TrimSpace(entry.Type) == "" {
		return RawDeviceInfo{}, nil, fmt.Errorf("%w: static camera %s requires type", ErrConfig, entry.Host)
	}
	family, err := ParseVendorTag(entry.Type)
	if err != nil {
		return RawDeviceInfo{}, nil, err
	}

	var override *AuthMode
	if entry.Auth != "" {
		mode, err := ParseAuthMode(entry.Auth)
		if err != nil {
			return RawDeviceInfo{}, nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		override = &mode
	}

	port := entry.Port
	if port <= 0 {
		port = defaultHTTPPort
	}
	auth := profileFor(family).defaultAuth("")
	if override != nil {
		auth = *override
	}

	adapter, err := r.factory(family, Endpoint{Host: entry.Host, Port: port, Auth: auth})
	if err != nil {
		return RawDeviceInfo{}, nil, fmt.Errorf("building adapter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.env.timeout)
	defer cancel()
	identity, err := adapter.Identify(callCtx)
	if err != nil {
		return RawDeviceInfo{}, nil, fmt.Errorf("identifying %s: %w", entry.Host, err)
	}

	id := IDFromSerial(identity.Serial)
	if id == "" {
		return RawDeviceInfo{}, nil, fmt.Errorf("%w: %s reported no serial", ErrProtocol, entry.Host)
	}
	name := identity.Name
	if name == "" {
		name = entry.Host
	}

	return RawDeviceInfo{
		ID:         id,
		Name:       name,
		IP:         entry.Host,
		Port:       port,
		SysVersion: identity.Version,
		Tag:        string(family),
	}, override, nil
}

// SetAuthOverride pins a camera's auth mode, or clears the pin when mode
// is nil. The choice is persisted and survives rediscovery.
func (r *Reconciler) SetAuthOverride(ctx context.Context, id string, mode *AuthMode) error {
	d, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	d.mu.Lock()
	d.authOverride = mode
	before := d.auth
	d.auth = d.resolveAuthLocked()
	ep := d.endpointLocked()
	d.mu.Unlock()

	if ep.Auth != before {
		if err := r.rebuildAdapter(d, ep); err != nil {
			return err
		}
	}
	r.persist(ctx, d)
	d.report(false)
	return nil
}

// Get returns the camera with the given id.
func (r *Reconciler) Get(id string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[strings.ToLower(id)]
	return d, ok
}

// FindByAddress returns the camera owning a node address, which is either
// its id or its motion entity address.
func (r *Reconciler) FindByAddress(addr string) (*Device, bool) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.devices[addr]; ok {
		return d, true
	}
	if id, ok := strings.CutSuffix(addr, motionSuffix); ok {
		if d, ok := r.devices[id]; ok {
			return d, true
		}
	}
	return nil, false
}

// Devices returns the known cameras ordered by id.
func (r *Reconciler) Devices() []*Device {
	r.mu.RLock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Count returns the number of known cameras.
func (r *Reconciler) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// RespondingCount returns how many cameras answered their last probe.
func (r *Reconciler) RespondingCount() int {
	n := 0
	for _, d := range r.Devices() {
		if d.Responding() == ReachUp {
			n++
		}
	}
	return n
}
