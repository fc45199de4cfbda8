package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/mqtt"
)

const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// commandTimeout bounds one MQTT command including its adapter calls.
	commandTimeout = 30 * time.Second
)

// MQTTClient is the subset of the MQTT client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// CommandRecorder keeps a trail of executed commands and discovery merges.
// err is nil when the command succeeded.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, deviceID, command, source string, err error)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	BridgeID string
	Version  string

	// MQTTClient carries commands, discovery results and health (required).
	MQTTClient MQTTClient

	// Factory builds vendor adapters (required).
	Factory AdapterFactory

	// Sink receives attribute reports (required).
	Sink AttributeSink

	// Nodes persists camera identities (optional).
	Nodes NodeStore

	// Recorder keeps a trail of MQTT commands (optional).
	Recorder CommandRecorder

	// Static lists cameras configured by address.
	Static []StaticEntry

	FastInterval   time.Duration
	SlowInterval   time.Duration
	RequestTimeout time.Duration
	HealthInterval time.Duration
	MaxConcurrent  int

	Clock  Clock
	Logger Logger
}

// BridgeMetrics is a snapshot of bridge counters.
type BridgeMetrics struct {
	Cameras          int   `json:"cameras"`
	Responding       int   `json:"responding"`
	CommandsReceived int64 `json:"commands_received"`
	CommandsFailed   int64 `json:"commands_failed"`
	Notifications    int64 `json:"notifications"`
	DiscoveryRuns    int64 `json:"discovery_runs"`
	UptimeSeconds    int64 `json:"uptime_seconds"`
	FastIntervalSecs int64 `json:"fast_interval_seconds"`
	SlowIntervalSecs int64 `json:"slow_interval_seconds"`
}

// Bridge connects the camera engine to Gray Logic Core over MQTT.
//
// It owns the reconciler, the poll scheduler, the notification bridge and
// the health reporter, and translates MQTT commands and discovery results
// into engine operations.
type Bridge struct {
	id       string
	version  string
	mqtt     MQTTClient
	sink     AttributeSink
	recorder CommandRecorder
	static   []StaticEntry
	started  time.Time

	reconciler    *Reconciler
	scheduler     *Scheduler
	notifications *NotificationBridge
	health        *HealthReporter

	// controllerMu keeps controller reports in the order they were read.
	controllerMu sync.Mutex

	commandsReceived atomic.Int64
	commandsFailed   atomic.Int64
	notificationsIn  atomic.Int64
	discoveryRuns    atomic.Int64

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("%w: MQTT client is required", ErrConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	reconciler, err := NewReconciler(ReconcilerOptions{
		Factory: opts.Factory,
		Sink:    opts.Sink,
		Nodes:   opts.Nodes,
		Logger:  logger,
		Clock:   opts.Clock,
		Timeout: opts.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	// Bridge-level context aborts in-flight polls and commands on shutdown.
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		id:            opts.BridgeID,
		version:       opts.Version,
		mqtt:          opts.MQTTClient,
		sink:          opts.Sink,
		recorder:      opts.Recorder,
		static:        opts.Static,
		started:       time.Now(),
		reconciler:    reconciler,
		notifications: NewNotificationBridge(reconciler, logger),
		done:          make(chan struct{}),
		ctx:           ctx,
		ctxCancel:     ctxCancel,
		logger:        logger,
	}

	b.scheduler = NewScheduler(SchedulerOptions{
		Devices:        reconciler,
		Clock:          opts.Clock,
		FastInterval:   opts.FastInterval,
		SlowInterval:   opts.SlowInterval,
		MaxConcurrent:  opts.MaxConcurrent,
		Logger:         logger,
		AfterSlowCycle: func(context.Context) { b.reportController(false) },
	})
	reconciler.SetOnCreate(func(d *Device) {
		b.scheduler.Probe(b.ctx, d)
	})

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Cameras:   reconciler,
	})
	b.health.SetLogger(logger)

	return b, nil
}

// Start loads persisted cameras, identifies static ones, subscribes to
// commands and discovery results and starts polling.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if _, err := b.reconciler.Rehydrate(ctx); err != nil {
		b.logError("failed to rehydrate cameras", err)
	}
	if len(b.static) > 0 {
		summary := b.reconciler.AddStatic(ctx, b.static)
		b.logInfo("static cameras reconciled",
			"created", summary.Created,
			"updated", summary.Updated,
			"skipped", summary.Skipped)
	}
	b.reportController(true)

	topics := mqtt.Topics{}
	for _, topic := range []string{topics.AllCommands(), topics.Discovery()} {
		if err := b.mqtt.Subscribe(topic, 1, b.handleMQTTMessage); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		b.logInfo("subscribed", "topic", topic)
	}

	b.scheduler.Start(b.ctx)
	b.health.Start(b.ctx)

	b.logInfo("bridge started",
		"bridge_id", b.id,
		"cameras", b.reconciler.Count())
	return nil
}

// Stop gracefully shuts the bridge down.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		b.ctxCancel()
		b.scheduler.Stop()
		b.health.Stop()
		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// Reconciler returns the bridge's camera registry.
func (b *Bridge) Reconciler() *Reconciler { return b.reconciler }

// SetAuthOverride pins or clears a camera's auth mode.
func (b *Bridge) SetAuthOverride(ctx context.Context, id string, mode *AuthMode) error {
	return b.reconciler.SetAuthOverride(ctx, id, mode)
}

// Reconcile merges a discovery result into the known cameras.
func (b *Bridge) Reconcile(ctx context.Context, infos []RawDeviceInfo) ReconcileSummary {
	b.discoveryRuns.Add(1)
	summary := b.reconciler.Reconcile(ctx, infos)
	b.reportController(false)

	b.logInfo("discovery reconciled",
		"records", len(infos),
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped)
	return summary
}

// Rescan re-identifies the statically configured cameras and refreshes
// every camera immediately.
func (b *Bridge) Rescan(ctx context.Context) ReconcileSummary {
	b.discoveryRuns.Add(1)
	summary := b.reconciler.AddStatic(ctx, b.static)
	b.reportController(false)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.scheduler.SlowCycle(b.ctx)
	}()
	return summary
}

// Execute runs a command against one camera.
func (b *Bridge) Execute(ctx context.Context, deviceID string, cmd Command) error {
	d, ok := b.reconciler.Get(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return d.Execute(ctx, cmd)
}

// HandleNotification dispatches one inbound camera notification.
func (b *Bridge) HandleNotification(data []byte) error {
	b.notificationsIn.Add(1)
	return b.notifications.HandleNotification(data)
}

// Devices returns a view of every known camera.
func (b *Bridge) Devices() []DeviceView {
	devices := b.reconciler.Devices()
	out := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.View())
	}
	return out
}

// Device returns a view of one camera.
func (b *Bridge) Device(id string) (DeviceView, bool) {
	d, ok := b.reconciler.Get(id)
	if !ok {
		return DeviceView{}, false
	}
	return d.View(), true
}

// Metrics returns the bridge counters.
func (b *Bridge) Metrics() BridgeMetrics {
	fast, slow := b.scheduler.Intervals()
	return BridgeMetrics{
		Cameras:          b.reconciler.Count(),
		Responding:       b.reconciler.RespondingCount(),
		CommandsReceived: b.commandsReceived.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
		Notifications:    b.notificationsIn.Load(),
		DiscoveryRuns:    b.discoveryRuns.Load(),
		UptimeSeconds:    int64(time.Since(b.started).Seconds()),
		FastIntervalSecs: int64(fast.Seconds()),
		SlowIntervalSecs: int64(slow.Seconds()),
	}
}

// reportController reports the bridge's own attributes: camera count and
// poll intervals.
func (b *Bridge) reportController(force bool) {
	b.controllerMu.Lock()
	defer b.controllerMu.Unlock()

	fast, slow := b.scheduler.Intervals()
	values := []attrValue{
		{AttrControllerCameras, float64(b.reconciler.Count())},
		{AttrControllerFast, fast.Seconds()},
		{AttrControllerSlow, slow.Seconds()},
	}
	for _, v := range values {
		if last, ok := b.sink.LastValue(ControllerAddress, v.name); ok && last == v.value && !force {
			continue
		}
		b.sink.SetValue(ControllerAddress, v.name, v.value, force)
	}
}

// handleMQTTMessage routes incoming MQTT messages by message type.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts[len(parts)-1], payload)
	case "discovery":
		b.handleDiscovery(payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

func (b *Bridge) handleCommand(topicDevice string, payload []byte) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if msg.DeviceID == "" {
		msg.DeviceID = topicDevice
	}
	b.commandsReceived.Add(1)

	b.logInfo("received command",
		"command_id", msg.ID,
		"device_id", msg.DeviceID,
		"command", msg.Command)

	cmd, err := ParseCommand(msg.Command, msg.Parameters)
	if err != nil {
		b.commandsFailed.Add(1)
		b.record(b.ctx, msg, err)
		b.publishAckError(msg, ErrorCode(err), err.Error())
		return
	}

	// Adapter calls block; keep them off the MQTT client's goroutine.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
		defer cancel()

		err := b.Execute(ctx, msg.DeviceID, cmd)
		b.record(ctx, msg, err)
		if err != nil {
			b.commandsFailed.Add(1)
			b.publishAckError(msg, ErrorCode(err), err.Error())
			return
		}
		b.publishAck(msg, AckAccepted)
	}()
}

func (b *Bridge) record(ctx context.Context, msg CommandMessage, err error) {
	if b.recorder == nil {
		return
	}
	source := msg.Source
	if source == "" {
		source = "mqtt"
	}
	b.recorder.RecordCommand(ctx, msg.DeviceID, msg.Command, source, err)
}

func (b *Bridge) handleDiscovery(payload []byte) {
	var msg DiscoveryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logError("failed to parse discovery result", err)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.Reconcile(b.ctx, msg.Devices)
		if b.recorder != nil {
			b.recorder.RecordCommand(b.ctx, "", discoveryAction, "mqtt", nil)
		}
	}()
}

const discoveryAction = "discovery"

func (b *Bridge) publishAck(cmd CommandMessage, status AckStatus) {
	b.publishJSON(mqtt.Topics{}.Ack(cmd.DeviceID), NewAckMessage(cmd, status))
}

func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	b.publishJSON(mqtt.Topics{}.Ack(cmd.DeviceID), NewAckError(cmd, code, message))
	b.logError("command failed", fmt.Errorf("code=%s message=%s", code, message))
}

func (b *Bridge) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal message", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logError("failed to publish message", err)
	}
}

// SetLogger replaces the bridge logger.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()
	logger.Info(msg, keysAndValues...)
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()
	logger.Error(msg, "error", err)
}
