package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-cameras/internal/bridges/camera"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/mqtt"
)

const (
	// AttributeChangedEvent is the WebSocket channel for attribute reports.
	AttributeChangedEvent = "camera.attribute_changed"

	defaultWriteTimeout = 5 * time.Second
)

// StatePublisher publishes retained state messages (typically MQTT).
type StatePublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MetricWriter records attribute values as time-series points.
type MetricWriter interface {
	WriteAttribute(address, attribute string, value float64)
}

// Broadcaster pushes events to live clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// ValueStore persists last values.
type ValueStore interface {
	SaveValue(ctx context.Context, address, name string, value float64) error
	ListValues(ctx context.Context) ([]AttributeValue, error)
}

// AttributeChanged is the WebSocket payload for one report.
type AttributeChanged struct {
	Address   string  `json:"address"`
	Attribute string  `json:"attribute"`
	Value     float64 `json:"value"`
	Forced    bool    `json:"forced,omitempty"`
}

// SinkOptions configures a Sink. Everything except Values is optional.
type SinkOptions struct {
	Values      ValueStore
	Publisher   StatePublisher
	Metrics     MetricWriter
	Broadcaster Broadcaster
	Logger      camera.Logger
}

// Sink is the camera.AttributeSink of the bridge. Each report that changes
// a value, or is forced, is cached, persisted and fanned out to MQTT,
// InfluxDB and WebSocket clients.
//
// Thread Safety: safe for concurrent use. Fan-out happens outside the cache
// lock.
type Sink struct {
	values      ValueStore
	publisher   StatePublisher
	metrics     MetricWriter
	broadcaster Broadcaster
	logger      camera.Logger

	mu    sync.RWMutex
	cache map[string]map[string]float64
}

var _ camera.AttributeSink = (*Sink)(nil)

// NewSink creates a Sink and warms its cache from the value store.
func NewSink(ctx context.Context, opts SinkOptions) (*Sink, error) {
	s := &Sink{
		values:      opts.Values,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		broadcaster: opts.Broadcaster,
		logger:      opts.Logger,
		cache:       make(map[string]map[string]float64),
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}

	if s.values != nil {
		stored, err := s.values.ListValues(ctx)
		if err != nil {
			return nil, err
		}
		for _, v := range stored {
			s.cacheLocked(v.Address, v.Name, v.Value)
		}
	}
	return s, nil
}

// LastValue returns the last reported value of an attribute.
func (s *Sink) LastValue(address, name string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[address][name]
	return v, ok
}

// Values returns a copy of every cached value of one address.
func (s *Sink) Values(address string) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.cache[address]))
	for k, v := range s.cache[address] {
		out[k] = v
	}
	return out
}

// SetValue records a report. Unchanged values are dropped unless force is set.
func (s *Sink) SetValue(address, name string, value float64, force bool) {
	s.mu.Lock()
	last, ok := s.cache[address][name]
	if ok && last == value && !force {
		s.mu.Unlock()
		return
	}
	s.cacheLocked(address, name, value)
	s.mu.Unlock()

	s.persist(address, name, value)
	s.publish(address, name, value)
	if s.metrics != nil {
		s.metrics.WriteAttribute(address, name, value)
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(AttributeChangedEvent, AttributeChanged{
			Address:   address,
			Attribute: name,
			Value:     value,
			Forced:    force,
		})
	}
}

func (s *Sink) cacheLocked(address, name string, value float64) {
	attrs, ok := s.cache[address]
	if !ok {
		attrs = make(map[string]float64)
		s.cache[address] = attrs
	}
	attrs[name] = value
}

func (s *Sink) persist(address, name string, value float64) {
	if s.values == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()
	if err := s.values.SaveValue(ctx, address, name, value); err != nil {
		s.logger.Error("failed to persist attribute", "address", address, "attribute", name, "error", err)
	}
}

func (s *Sink) publish(address, name string, value float64) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(camera.NewStateMessage(address, name, value))
	if err != nil {
		s.logger.Error("failed to marshal state", "address", address, "error", err)
		return
	}
	if err := s.publisher.Publish(mqtt.Topics{}.State(address), payload, 1, true); err != nil {
		s.logger.Warn("failed to publish state", "address", address, "attribute", name, "error", err)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
