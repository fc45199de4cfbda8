package camera

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
)

type writeKind int

const (
	writeField writeKind = iota
	writeLinkage
	writeIRLED
)

type writeTarget struct {
	kind  writeKind
	field fieldAttr
	bit   LinkageBit
	value int
}

// resolveWrite maps an attribute and value to a write operation.
func (d *Device) resolveWrite(attr string, value float64) (writeTarget, error) {
	if value != math.Trunc(value) {
		return writeTarget{}, fmt.Errorf("%w: %s=%v is not an integer", ErrInvalidValue, attr, value)
	}
	n := int(value)
	caps := d.Capabilities()

	if ir := d.profile.irAttr(); ir != "" && ir == attr {
		if !caps.Has(CapIRLED) {
			return writeTarget{}, fmt.Errorf("%w: %s", ErrUnsupported, attr)
		}
		if n < int(IRLEDAuto) || n > int(IRLEDOn) {
			return writeTarget{}, fmt.Errorf("%w: %s=%d", ErrInvalidValue, attr, n)
		}
		return writeTarget{kind: writeIRLED, value: n}, nil
	}

	for _, fa := range d.profile.fieldAttrs() {
		if fa.attr != attr {
			continue
		}
		if !fa.writable {
			return writeTarget{}, fmt.Errorf("%w: %s is read-only", ErrUnsupported, attr)
		}
		if n < fa.min || n > fa.max {
			return writeTarget{}, fmt.Errorf("%w: %s=%d outside [%d, %d]", ErrInvalidValue, attr, n, fa.min, fa.max)
		}
		return writeTarget{kind: writeField, field: fa, value: n}, nil
	}

	for _, la := range d.profile.linkageAttrs() {
		if la.attr != attr {
			continue
		}
		if !caps.Has(CapLinkage | la.requires) {
			return writeTarget{}, fmt.Errorf("%w: %s", ErrUnsupported, attr)
		}
		if n != 0 && n != 1 {
			return writeTarget{}, fmt.Errorf("%w: %s=%d", ErrInvalidValue, attr, n)
		}
		return writeTarget{kind: writeLinkage, bit: la.bit, value: n}, nil
	}

	return writeTarget{}, fmt.Errorf("%w: attribute %s", ErrUnsupported, attr)
}

func (d *Device) targetFor(cmd Command) (writeTarget, error) {
	switch c := cmd.(type) {
	case SetAttribute:
		return d.resolveWrite(c.Attribute, c.Value)
	case SetIRLED:
		if !d.Capabilities().Has(CapIRLED) {
			return writeTarget{}, fmt.Errorf("%w: ir led", ErrUnsupported)
		}
		if c.Mode < IRLEDAuto || c.Mode > IRLEDOn {
			return writeTarget{}, fmt.Errorf("%w: ir led mode %d", ErrInvalidValue, c.Mode)
		}
		return writeTarget{kind: writeIRLED, value: int(c.Mode)}, nil
	default:
		return writeTarget{}, fmt.Errorf("%w: %s is not a write", ErrUnsupported, cmd.Name())
	}
}

// SetAttribute writes one attribute to the camera.
//
// The write is rejected with ErrUnreachable, without contacting the
// camera, unless the last reachability probe succeeded. A write that
// reaches the camera and fails is kept pending and retried by the fast
// cycle once the camera responds again.
func (d *Device) SetAttribute(ctx context.Context, attr string, value float64) error {
	return d.write(ctx, SetAttribute{Attribute: attr, Value: value})
}

// SetIRLED sets the infrared illuminator mode.
func (d *Device) SetIRLED(ctx context.Context, mode IRLEDMode) error {
	return d.write(ctx, SetIRLED{Mode: mode})
}

func (d *Device) write(ctx context.Context, cmd Command) error {
	target, err := d.targetFor(cmd)
	if err != nil {
		return err
	}
	if d.Responding() != ReachUp {
		return fmt.Errorf("%w: %s", ErrUnreachable, d.id)
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()
	return d.applyWrite(ctx, cmd, target)
}

// applyWrite performs a write and records its outcome. Caller holds opMu.
func (d *Device) applyWrite(ctx context.Context, cmd Command, target writeTarget) error {
	key := pendingKey(cmd)

	if err := d.performWrite(ctx, target); err != nil {
		d.mu.Lock()
		d.pending[key] = cmd
		d.mu.Unlock()

		d.logger().Error("camera write failed",
			"device_id", d.id,
			"write", key,
			"error", err,
		)
		return fmt.Errorf("camera %s: write %s: %w", d.id, key, err)
	}

	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()

	d.report(false)
	return nil
}

func (d *Device) performWrite(ctx context.Context, target writeTarget) error {
	adapter := d.currentAdapter()
	if adapter == nil {
		return ErrUnreachable
	}

	switch target.kind {
	case writeIRLED:
		callCtx, cancel := d.callContext(ctx)
		defer cancel()
		if err := adapter.SetIRLEDConfig(callCtx, IRLEDMode(target.value)); err != nil {
			return err
		}
		d.mu.Lock()
		d.profile.applyIRLED(d.snapshot, IRLEDMode(target.value))
		d.mu.Unlock()
		return nil

	case writeLinkage:
		// Always re-read the bitmask so bits changed on the camera since the
		// last poll are not overwritten.
		fields, err := d.fetch(ctx, catMotion, adapter.GetMotionConfig)
		if err != nil {
			return err
		}
		linkage, ok := fields.Int(linkageField)
		if !ok {
			return fmt.Errorf("%w: motion config has no %s field", ErrProtocol, linkageField)
		}
		if target.value == 1 {
			linkage = SetBit(linkage, target.bit)
		} else {
			linkage = ClearBit(linkage, target.bit)
		}
		fields[linkageField] = strconv.Itoa(linkage)
		return d.sendMotionConfig(ctx, adapter, fields)

	default:
		// The camera resets fields missing from a write, so the whole
		// category is sent with the one field changed.
		fields := d.Snapshot(target.field.category)
		if len(fields) == 0 {
			var err error
			if fields, err = d.fetch(ctx, target.field.category, adapter.GetMotionConfig); err != nil {
				return err
			}
		}
		fields[target.field.field] = strconv.Itoa(target.value)
		return d.sendMotionConfig(ctx, adapter, fields)
	}
}

func (d *Device) sendMotionConfig(ctx context.Context, adapter Adapter, fields Fields) error {
	callCtx, cancel := d.callContext(ctx)
	defer cancel()
	if err := adapter.SetMotionConfig(callCtx, fields); err != nil {
		return err
	}

	d.mu.Lock()
	d.storeLocked(catMotion, fields, false)
	d.mu.Unlock()
	return nil
}

// retryPending re-sends writes that failed earlier. Caller holds opMu.
func (d *Device) retryPending(ctx context.Context) {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cmds := make([]Command, 0, len(keys))
	for _, k := range keys {
		cmds = append(cmds, d.pending[k])
	}
	d.mu.Unlock()

	for _, cmd := range cmds {
		target, err := d.targetFor(cmd)
		if err != nil {
			d.mu.Lock()
			delete(d.pending, pendingKey(cmd))
			d.mu.Unlock()
			continue
		}
		if err := d.applyWrite(ctx, cmd, target); err != nil {
			return
		}
		d.logger().Info("pending camera write applied", "device_id", d.id, "write", pendingKey(cmd))
	}
}

// Execute runs a command against the camera.
func (d *Device) Execute(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case SetAttribute, SetIRLED:
		return d.write(ctx, c)
	case GotoPreset:
		return d.control(ctx, c, func(ctx context.Context, a Adapter) error {
			return a.GotoPreset(ctx, c.Preset)
		})
	case Reboot:
		return d.control(ctx, c, func(ctx context.Context, a Adapter) error {
			return a.Reboot(ctx)
		})
	case Query:
		d.opMu.Lock()
		defer d.opMu.Unlock()
		d.mu.Lock()
		d.fullReport = true
		d.mu.Unlock()
		d.refresh(ctx)
		if d.Responding() != ReachUp {
			return fmt.Errorf("%w: %s", ErrUnreachable, d.id)
		}
		return nil
	default:
		return fmt.Errorf("%w: command %T", ErrUnsupported, cmd)
	}
}

func (d *Device) control(ctx context.Context, cmd Command, fn func(context.Context, Adapter) error) error {
	if _, ok := cmd.(GotoPreset); ok && !d.Capabilities().Has(CapPresets) {
		return fmt.Errorf("%w: presets", ErrUnsupported)
	}
	if d.Responding() != ReachUp {
		return fmt.Errorf("%w: %s", ErrUnreachable, d.id)
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()

	adapter := d.currentAdapter()
	if adapter == nil {
		return fmt.Errorf("%w: %s", ErrUnreachable, d.id)
	}
	callCtx, cancel := d.callContext(ctx)
	defer cancel()
	if err := fn(callCtx, adapter); err != nil {
		return fmt.Errorf("camera %s: %s: %w", d.id, cmd.Name(), err)
	}
	return nil
}
