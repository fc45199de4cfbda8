package camera

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// respondingHD2 returns an HD2 camera after one successful slow cycle.
func respondingHD2(t *testing.T) (*testEnv, *Device) {
	t.Helper()
	env := newTestEnv(t, hd2Adapter())
	d := env.add(t, hd2Info())
	env.scheduler.SlowCycle(context.Background())
	require.Equal(t, ReachUp, d.Responding())
	env.sink.take()
	env.adapter.resetCalls()
	return env, d
}

func TestSetAttribute_UnreachableMakesNoCalls(t *testing.T) {
	adapter := hd2Adapter()
	adapter.statusErr = timeoutErr()
	env := newTestEnv(t, adapter)
	d := env.add(t, hd2Info())

	// Never probed.
	err := d.SetAttribute(context.Background(), "GV0", 1)
	assert.True(t, errors.Is(err, ErrUnreachable))

	env.scheduler.SlowCycle(context.Background())
	require.Equal(t, ReachDown, d.Responding())
	adapter.resetCalls()

	err = d.SetAttribute(context.Background(), "GV0", 1)
	assert.True(t, errors.Is(err, ErrUnreachable))
	assert.Empty(t, adapter.callLog())
	assert.Empty(t, d.PendingWrites())
}

func TestSetAttribute_DirectWriteSendsFullRecord(t *testing.T) {
	env, d := respondingHD2(t)

	require.NoError(t, d.SetAttribute(context.Background(), "GV8", 4))

	assert.Equal(t, []string{"SetMotionConfig"}, env.adapter.callLog())
	require.Len(t, env.adapter.written, 1)
	assert.Equal(t, Fields{
		"isEnable":        "1",
		"linkage":         "5",
		"sensitivity":     "4",
		"triggerInterval": "3",
		"snapInterval":    "2",
	}, env.adapter.written[0])

	assert.Equal(t, "4", d.Snapshot(catMotion)["sensitivity"])
	assert.Equal(t, []sinkReport{{d.ID(), "GV8", 4, false}}, env.sink.take())
}

func TestSetAttribute_LinkageRefetchesBits(t *testing.T) {
	env, d := respondingHD2(t)

	// The snapshot bit was cleared on the camera since the last poll.
	env.adapter.set(func(f *fakeAdapter) { f.motionCfg["linkage"] = "1" })

	require.NoError(t, d.SetAttribute(context.Background(), "GV4", 1))

	assert.Equal(t, []string{"GetMotionConfig", "SetMotionConfig"}, env.adapter.callLog())
	require.Len(t, env.adapter.written, 1)
	assert.Equal(t, "9", env.adapter.written[0]["linkage"])

	assert.ElementsMatch(t, []sinkReport{
		{d.ID(), "GV14", 0, false},
		{d.ID(), "GV4", 1, false},
	}, env.sink.take())

	require.NoError(t, d.SetAttribute(context.Background(), "GV0", 0))
	assert.Equal(t, "8", env.adapter.written[1]["linkage"])
}

func TestSetAttribute_FailureLeavesPendingWrite(t *testing.T) {
	env, d := respondingHD2(t)
	env.adapter.set(func(f *fakeAdapter) {
		f.setMotionErr = &AdapterError{Op: "setMotionDetectConfig", Class: StatusUnknown, Code: -1}
	})

	err := d.SetAttribute(context.Background(), "GV10", 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtocol))
	assert.Equal(t, []string{"GV10"}, d.PendingWrites())
	assert.Equal(t, "3", d.Snapshot(catMotion)["triggerInterval"], "failed writes are not mirrored")

	// A newer write to the same attribute replaces the pending one.
	_ = d.SetAttribute(context.Background(), "GV10", 9)
	assert.Equal(t, []string{"GV10"}, d.PendingWrites())

	env.adapter.set(func(f *fakeAdapter) { f.setMotionErr = nil })
	env.adapter.resetCalls()
	env.sink.take()

	env.scheduler.FastCycle(context.Background())

	assert.Equal(t, []string{"SetMotionConfig"}, env.adapter.callLog())
	assert.Empty(t, d.PendingWrites())
	assert.Equal(t, "9", d.Snapshot(catMotion)["triggerInterval"])
	assert.Equal(t, []sinkReport{{d.ID(), "GV10", 9, false}}, env.sink.take())
}

func TestSetAttribute_PendingWaitsForResponding(t *testing.T) {
	env, d := respondingHD2(t)
	env.adapter.set(func(f *fakeAdapter) {
		f.setMotionErr = &AdapterError{Op: "setMotionDetectConfig", Class: StatusUnreachable}
	})
	require.Error(t, d.SetAttribute(context.Background(), "GV6", 0))

	env.adapter.set(func(f *fakeAdapter) { f.statusErr = timeoutErr() })
	env.scheduler.SlowCycle(context.Background())
	env.adapter.resetCalls()

	env.scheduler.FastCycle(context.Background())
	assert.Empty(t, env.adapter.callLog())
	assert.Equal(t, []string{"GV6"}, d.PendingWrites())
}

func TestSetAttribute_Validation(t *testing.T) {
	_, d := respondingHD2(t)

	tests := []struct {
		name  string
		attr  string
		value float64
		want  error
	}{
		{"unknown attribute", "GV99", 1, ErrUnsupported},
		{"read-only", AttrPort, 80, ErrUnsupported},
		{"out of range", "GV8", 5, ErrInvalidValue},
		{"fraction", "GV8", 1.5, ErrInvalidValue},
		{"linkage not boolean", "GV0", 2, ErrInvalidValue},
		{"push needs capable model", "GV15", 1, ErrUnsupported},
		{"ir mode out of range", "GV5", 3, ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.SetAttribute(context.Background(), tt.attr, tt.value)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSetAttribute_IRLED(t *testing.T) {
	env, d := respondingHD2(t)

	require.NoError(t, d.SetAttribute(context.Background(), "GV5", float64(IRLEDOn)))
	assert.Equal(t, []IRLEDMode{IRLEDOn}, env.adapter.irModes)
	assert.Equal(t, []sinkReport{{d.ID(), "GV5", float64(IRLEDOn), false}}, env.sink.take())

	require.NoError(t, d.SetIRLED(context.Background(), IRLEDAuto))
	assert.Equal(t, []sinkReport{{d.ID(), "GV5", float64(IRLEDAuto), false}}, env.sink.take())
}

func TestExecute(t *testing.T) {
	env, d := respondingHD2(t)
	ctx := context.Background()

	require.NoError(t, d.Execute(ctx, GotoPreset{Preset: 2}))
	require.NoError(t, d.Execute(ctx, Reboot{}))
	assert.Equal(t, []string{"GotoPreset", "Reboot"}, env.adapter.callLog())

	env.sink.take()
	require.NoError(t, d.Execute(ctx, Query{}))
	for _, r := range env.sink.take() {
		if r.address == d.ID() {
			assert.True(t, r.force, r.name)
		}
	}

	env.adapter.set(func(f *fakeAdapter) { f.statusErr = timeoutErr() })
	assert.True(t, errors.Is(d.Execute(ctx, Query{}), ErrUnreachable))
	assert.True(t, errors.Is(d.Execute(ctx, Reboot{}), ErrUnreachable))
}

func TestExecute_AmcrestHasNoIRLED(t *testing.T) {
	adapter := &fakeAdapter{
		status:    Fields{"name": "Driveway"},
		info:      Fields{"version": "2.420.AC00.18.R,build:2017-05-26", "deviceType": "IP2M-841B"},
		motionCfg: Fields{"Enable": "1", "EventHandler.RecordEnable": "0"},
	}
	env := newTestEnv(t, adapter)
	d := env.add(t, RawDeviceInfo{ID: "4m01234pag0001", IP: "10.0.0.20", Tag: "Amcrest"})
	env.scheduler.SlowCycle(context.Background())
	require.Equal(t, ReachUp, d.Responding())

	assert.NotContains(t, adapter.callLog(), "GetIRLEDConfig")
	assert.NotContains(t, adapter.callLog(), "GetMotionStatus")
	assert.True(t, errors.Is(d.Execute(context.Background(), SetIRLED{Mode: IRLEDOn}), ErrUnsupported))

	require.NoError(t, d.SetAttribute(context.Background(), "GV6", 1))
	require.NotEmpty(t, adapter.written)
	assert.Equal(t, "1", adapter.written[0]["EventHandler.RecordEnable"])
	assert.Equal(t, "1", adapter.written[0]["Enable"])

	raw, short := d.FirmwareVersion()
	assert.Equal(t, "2.420.AC00.18.R", raw)
	assert.Equal(t, 2.42, short)
}
