package camera

import (
	"context"
	"fmt"
)

// fetch runs one getter under the call timeout and stores its result in
// category. A failed getter that still returned fields is merged.
func (d *Device) fetch(ctx context.Context, category string, get func(context.Context) (Fields, error)) (Fields, error) {
	callCtx, cancel := d.callContext(ctx)
	defer cancel()

	fields, err := get(callCtx)
	if len(fields) > 0 {
		d.mu.Lock()
		d.storeLocked(category, fields, err != nil)
		d.mu.Unlock()
	}
	if err != nil {
		return nil, err
	}
	return fields.Clone(), nil
}

// refresh runs the full query sequence: reachability probe, device info,
// motion configuration and, where supported, IR LED configuration. The
// probe always runs first and a failed step aborts the rest. Caller holds
// opMu.
func (d *Device) refresh(ctx context.Context) {
	adapter := d.currentAdapter()
	if adapter == nil {
		d.markUnreachable(fmt.Errorf("%w: no adapter", ErrUnreachable))
		return
	}

	callCtx, cancel := d.callContext(ctx)
	status, err := adapter.GetStatus(callCtx)
	cancel()
	if err != nil {
		d.markUnreachable(err)
		return
	}

	d.mu.Lock()
	wasUp := d.responding == ReachUp
	d.responding = ReachUp
	d.storeLocked(catStatus, status, false)
	force := d.fullReport
	d.fullReport = false
	d.lastPoll = d.env.clock.Now()
	d.mu.Unlock()

	if !wasUp {
		d.logger().Info("camera responding", "device_id", d.id)
	}

	versionChanged, err := d.querySteps(ctx, adapter)
	if versionChanged {
		force = true
	}
	if err != nil {
		d.logger().Error("camera query sequence aborted",
			"device_id", d.id,
			"error", err,
		)
		if force {
			d.mu.Lock()
			d.fullReport = true
			d.mu.Unlock()
		}
	}

	d.report(force)

	if err == nil && d.motion.Status() == MotionUnknown {
		d.motion.Query(ctx)
	}
}

func (d *Device) querySteps(ctx context.Context, adapter Adapter) (versionChanged bool, err error) {
	info, err := d.fetch(ctx, catDevInfo, adapter.GetDeviceInfo)
	if err != nil {
		return false, fmt.Errorf("device info: %w", err)
	}

	d.mu.Lock()
	if model := d.profile.modelOf(info); model != "" {
		d.model = model
	}
	raw := d.profile.versionOf(info)
	var previous string
	if raw != "" && raw != d.firmware {
		previous = d.firmware
		versionChanged = previous != ""
		d.setFirmwareLocked(raw)
	}
	caps := Capabilities(d.family, d.model)
	d.mu.Unlock()

	if versionChanged {
		d.logger().Info("camera firmware changed",
			"device_id", d.id,
			"previous", previous,
			"firmware", raw,
		)
	}

	if _, err := d.fetch(ctx, catMotion, adapter.GetMotionConfig); err != nil {
		return versionChanged, fmt.Errorf("motion config: %w", err)
	}

	if caps.Has(CapIRLED) {
		if _, err := d.fetch(ctx, catIRLED, adapter.GetIRLEDConfig); err != nil {
			return versionChanged, fmt.Errorf("ir led config: %w", err)
		}
	}
	return versionChanged, nil
}

// fastPoll confirms an active motion state and retries pending writes.
// Caller holds opMu.
func (d *Device) fastPoll(ctx context.Context) {
	if d.motion.Status() == MotionOn {
		d.motion.Query(ctx)
	}

	d.mu.Lock()
	retry := d.responding == ReachUp && len(d.pending) > 0
	d.mu.Unlock()
	if retry {
		d.retryPending(ctx)
	}
}
