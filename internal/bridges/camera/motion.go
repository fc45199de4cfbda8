package camera

import "context"

// MotionEntity tracks the motion status of one camera.
//
// Its status is guarded by the parent device's mutex, and a status change
// is reported under the parent's reportMu. Unsupported is terminal:
// neither Query nor Notify leave it.
type MotionEntity struct {
	parent  *Device
	address string
	status  MotionStatus
}

// Address returns the node address the motion status is reported on.
func (m *MotionEntity) Address() string { return m.address }

// Status returns the cached motion status.
func (m *MotionEntity) Status() MotionStatus {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()
	return m.status
}

// Query polls the camera for its motion status and reports it when it
// changed. A failed poll moves the entity to Unknown. Query returns false
// when the entity is Unsupported, telling callers to stop polling it.
func (m *MotionEntity) Query(ctx context.Context) bool {
	if m.Status() == MotionUnsupported {
		return false
	}

	adapter := m.parent.currentAdapter()
	if adapter == nil {
		m.set(MotionUnknown, false)
		return true
	}

	callCtx, cancel := m.parent.callContext(ctx)
	defer cancel()

	status, err := adapter.GetMotionStatus(callCtx)
	if err != nil {
		m.parent.logger().Debug("motion query failed",
			"device_id", m.parent.id,
			"error", err,
		)
		status = MotionUnknown
	}
	if status == MotionUnsupported {
		// Only the family capability table can make an entity Unsupported.
		status = MotionUnknown
	}
	m.set(status, false)
	return true
}

// Notify applies a pushed motion state and always reports it.
func (m *MotionEntity) Notify(status MotionStatus) {
	if status != MotionOn && status != MotionOff {
		return
	}
	m.set(status, true)
}

// invalidate moves a supported entity to Unknown after its camera stopped
// responding.
func (m *MotionEntity) invalidate() {
	m.set(MotionUnknown, false)
}

func (m *MotionEntity) set(status MotionStatus, force bool) {
	m.parent.reportMu.Lock()
	defer m.parent.reportMu.Unlock()

	m.parent.mu.Lock()
	if m.status == MotionUnsupported {
		m.parent.mu.Unlock()
		return
	}
	changed := m.status != status
	m.status = status
	m.parent.mu.Unlock()

	if changed || force {
		m.parent.env.sink.SetValue(m.address, AttrResponding, float64(status), force)
	}
}
