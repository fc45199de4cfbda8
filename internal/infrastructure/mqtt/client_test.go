package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-cameras-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", topics.State("00626e41d9a2"), "graylogic/state/camera/00626e41d9a2"},
		{"motion state", topics.State("00626e41d9a2m"), "graylogic/state/camera/00626e41d9a2m"},
		{"command", topics.Command("cam1"), "graylogic/command/camera/cam1"},
		{"ack", topics.Ack("cam1"), "graylogic/ack/camera/cam1"},
		{"health", topics.Health(), "graylogic/health/camera"},
		{"discovery", topics.Discovery(), "graylogic/discovery/camera"},
		{"all commands", topics.AllCommands(), "graylogic/command/camera/+"},
		{"all states", topics.AllStates(), "graylogic/state/camera/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://127.0.0.1:1883", opts.Servers[0].String())
	assert.Equal(t, "graylogic-cameras-test", opts.ClientID)
	assert.Equal(t, "bridge", opts.Username)
	assert.True(t, opts.AutoReconnect)

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	assert.Equal(t, "ssl://127.0.0.1:1883", opts.Servers[0].String())
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tlsMinVersion), opts.TLSConfig.MinVersion)
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, "cams")

	assert.True(t, opts.WillEnabled)
	assert.True(t, opts.WillRetained)
	assert.Equal(t, Topics{}.Health(), opts.WillTopic)

	var payload statusPayload
	require.NoError(t, json.Unmarshal(opts.WillPayload, &payload))
	assert.Equal(t, "offline", payload.Status)
	assert.Equal(t, "cams", payload.ClientID)
	assert.Equal(t, "unexpected_disconnect", payload.Reason)
}

func TestPublish_Validation(t *testing.T) {
	c := newClient(testConfig())

	assert.ErrorIs(t, c.Publish("", []byte("x"), 1, false), ErrInvalidTopic)
	assert.ErrorIs(t, c.Publish("t", []byte("x"), 3, false), ErrInvalidQoS)
	assert.ErrorIs(t, c.Publish("t", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed)
	assert.ErrorIs(t, c.Publish("t", []byte("x"), 1, false), ErrNotConnected)
	assert.ErrorIs(t, c.PublishJSON("t", map[string]int{"a": 1}, true), ErrNotConnected)
	assert.ErrorIs(t, c.PublishJSON("t", make(chan int), true), ErrPublishFailed)
}

func TestSubscribe_Validation(t *testing.T) {
	c := newClient(testConfig())
	noop := func(string, []byte) error { return nil }

	assert.ErrorIs(t, c.Subscribe("", 1, noop), ErrInvalidTopic)
	assert.ErrorIs(t, c.Subscribe("t", 5, noop), ErrInvalidQoS)
	assert.ErrorIs(t, c.Subscribe("t", 1, nil), ErrSubscribeFailed)
	assert.ErrorIs(t, c.Subscribe("t", 1, noop), ErrNotConnected)
	assert.Equal(t, 0, c.SubscriptionCount())
	assert.False(t, c.HasSubscription("t"))
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := newClient(testConfig())

	assert.False(t, c.IsConnected())
	assert.True(t, errors.Is(c.HealthCheck(context.Background()), ErrNotConnected))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.HealthCheck(ctx), context.Canceled)
}

func TestWrapHandler(t *testing.T) {
	c := newClient(testConfig())
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var got string
	ok := c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})
	ok(nil, fakeMessage{topic: "graylogic/command/camera/cam1", payload: []byte("{}")})
	assert.Equal(t, "graylogic/command/camera/cam1={}", got)

	failing := c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })
	failing(nil, fakeMessage{topic: "t"})

	panicking := c.wrapHandler(func(string, []byte) error { panic("boom") })
	assert.NotPanics(t, func() { panicking(nil, fakeMessage{topic: "t"}) })

	assert.Equal(t, []string{"MQTT handler returned error"}, logger.warns)
	assert.Equal(t, []string{"MQTT handler panic recovered"}, logger.errors)
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
	assert.NoError(t, newClient(testConfig()).Close())
}

func TestConnect_BrokerUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 1 // nothing listens here

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}
