package camera

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeAdapter returns canned responses and records every call.
type fakeAdapter struct {
	mu    sync.Mutex
	calls []string

	status       Fields
	statusErr    error
	info         Fields
	infoErr      error
	motionCfg    Fields
	motionCfgErr error
	setMotionErr error
	ir           Fields
	irErr        error
	setIRErr     error
	motion       MotionStatus
	motionErr    error
	identity     Identity
	identifyErr  error

	written []Fields
	irModes []IRLEDMode
}

func (f *fakeAdapter) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAdapter) GetStatus(context.Context) (Fields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetStatus")
	return f.status.Clone(), f.statusErr
}

func (f *fakeAdapter) GetDeviceInfo(context.Context) (Fields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetDeviceInfo")
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info.Clone(), nil
}

func (f *fakeAdapter) GetMotionConfig(context.Context) (Fields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetMotionConfig")
	if f.motionCfgErr != nil {
		return nil, f.motionCfgErr
	}
	return f.motionCfg.Clone(), nil
}

func (f *fakeAdapter) SetMotionConfig(_ context.Context, fields Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetMotionConfig")
	if f.setMotionErr != nil {
		return f.setMotionErr
	}
	f.written = append(f.written, fields.Clone())
	f.motionCfg = fields.Clone()
	return nil
}

func (f *fakeAdapter) GetIRLEDConfig(context.Context) (Fields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetIRLEDConfig")
	if f.irErr != nil {
		return nil, f.irErr
	}
	return f.ir.Clone(), nil
}

func (f *fakeAdapter) SetIRLEDConfig(_ context.Context, mode IRLEDMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetIRLEDConfig")
	if f.setIRErr != nil {
		return f.setIRErr
	}
	f.irModes = append(f.irModes, mode)
	return nil
}

func (f *fakeAdapter) GetMotionStatus(context.Context) (MotionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetMotionStatus")
	return f.motion, f.motionErr
}

func (f *fakeAdapter) GotoPreset(context.Context, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GotoPreset")
	return nil
}

func (f *fakeAdapter) Reboot(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Reboot")
	return nil
}

func (f *fakeAdapter) Identify(context.Context) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Identify")
	return f.identity, f.identifyErr
}

func (f *fakeAdapter) set(fn func(f *fakeAdapter)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAdapter) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAdapter) count(call string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAdapter) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type sinkReport struct {
	address string
	name    string
	value   float64
	force   bool
}

// recordingSink stores values like the real sink and records every report.
type recordingSink struct {
	mu      sync.Mutex
	values  map[string]float64
	reports []sinkReport
}

func newRecordingSink() *recordingSink {
	return &recordingSink{values: make(map[string]float64)}
}

func (s *recordingSink) LastValue(address, name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[address+"/"+name]
	return v, ok
}

func (s *recordingSink) SetValue(address, name string, value float64, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[address+"/"+name] = value
	s.reports = append(s.reports, sinkReport{address, name, value, force})
}

// take returns and clears the recorded reports.
func (s *recordingSink) take() []sinkReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.reports
	s.reports = nil
	return out
}

func (s *recordingSink) seed(address, name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[address+"/"+name] = value
}

func reportsFor(reports []sinkReport, address, name string) []sinkReport {
	var out []sinkReport
	for _, r := range reports {
		if r.address == address && r.name == name {
			out = append(out, r)
		}
	}
	return out
}

// memNodes is an in-memory NodeStore.
type memNodes struct {
	mu    sync.Mutex
	nodes map[string]Node
}

func newMemNodes(nodes ...Node) *memNodes {
	m := &memNodes{nodes: make(map[string]Node)}
	for _, n := range nodes {
		m.nodes[n.ID] = n
	}
	return m
}

func (m *memNodes) SaveNode(_ context.Context, n Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n
	return nil
}

func (m *memNodes) ListNodes(context.Context) ([]Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	return out, nil
}

type testEnv struct {
	adapter    *fakeAdapter
	sink       *recordingSink
	nodes      *memNodes
	reconciler *Reconciler
	scheduler  *Scheduler

	factoryMu    sync.Mutex
	factoryCalls []Endpoint
}

func (e *testEnv) endpoints() []Endpoint {
	e.factoryMu.Lock()
	defer e.factoryMu.Unlock()
	return append([]Endpoint(nil), e.factoryCalls...)
}

func newTestEnv(t *testing.T, adapter *fakeAdapter) *testEnv {
	t.Helper()

	env := &testEnv{
		adapter: adapter,
		sink:    newRecordingSink(),
		nodes:   newMemNodes(),
	}

	r, err := NewReconciler(ReconcilerOptions{
		Factory: func(_ VendorFamily, ep Endpoint) (Adapter, error) {
			env.factoryMu.Lock()
			env.factoryCalls = append(env.factoryCalls, ep)
			env.factoryMu.Unlock()
			return adapter, nil
		},
		Sink:    env.sink,
		Nodes:   env.nodes,
		Timeout: time.Second,
	})
	require.NoError(t, err)

	env.reconciler = r
	env.scheduler = NewScheduler(SchedulerOptions{Devices: r, MaxConcurrent: 4})
	return env
}

// add reconciles one discovery record and returns its device.
func (e *testEnv) add(t *testing.T, info RawDeviceInfo) *Device {
	t.Helper()
	summary := e.reconciler.Reconcile(context.Background(), []RawDeviceInfo{info})
	require.Equal(t, 1, summary.Created+summary.Updated, summary.Errors)
	d, ok := e.reconciler.Get(SanitizeID(info.ID))
	require.True(t, ok)
	return d
}

func mjpegInfo() RawDeviceInfo {
	return RawDeviceInfo{
		ID:         "ab12cd34ef56",
		Name:       "Porch",
		IP:         "192.168.1.50",
		Port:       80,
		SysVersion: "1.2.3.45",
		Tag:        "MJPEG",
	}
}

func mjpegAdapter() *fakeAdapter {
	return &fakeAdapter{
		status: Fields{"alarm_status": "0", "sys_ver": "1.2.3.45"},
		info:   Fields{"sys_ver": "1.2.3.45", "alias": "Porch"},
		motionCfg: Fields{
			"alarm_motion_armed":        "1",
			"alarm_mail":                "0",
			"alarm_motion_sensitivity":  "5",
			"alarm_motion_compensation": "1",
			"alarm_upload_interval":     "2",
		},
		ir:     Fields{"led_mode": "0"},
		motion: MotionOff,
	}
}

func hd2Info() RawDeviceInfo {
	return RawDeviceInfo{
		ID:         "00626E41D9A2",
		Name:       "Garage",
		IP:         "192.168.1.60",
		Port:       88,
		SysVersion: "2.11.1.118",
		Tag:        "HD2",
	}
}

func hd2Adapter() *fakeAdapter {
	return &fakeAdapter{
		status: Fields{"infraLedState": "0", "motionDetectAlarm": "1"},
		info:   Fields{"firmwareVer": "2.11.1.118", "productName": "FI9821W"},
		motionCfg: Fields{
			"isEnable":        "1",
			"linkage":         "5",
			"sensitivity":     "2",
			"triggerInterval": "3",
			"snapInterval":    "2",
		},
		ir:     Fields{"mode": "1"},
		motion: MotionOff,
	}
}
