package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-things-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "things"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "graylogic-things-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "things" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "graylogic-things-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "graylogic/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}
	if !strings.Contains(string(opts.WillPayload), `"unexpected_disconnect"`) {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}
}

func TestStatusPayload(t *testing.T) {
	var msg StatusMessage
	if err := json.Unmarshal(statusPayload(statusOffline, reasonGracefulShutdown, "x"), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Status != "offline" || msg.Reason != "graceful_shutdown" || msg.ClientID != "x" || msg.Timestamp == "" {
		t.Errorf("statusPayload() = %+v", msg)
	}

	online := string(statusPayload(statusOnline, "", "x"))
	if !strings.Contains(online, `"status":"online"`) || strings.Contains(online, "reason") {
		t.Errorf("online payload = %s", online)
	}
}

// =============================================================================
// Validation Tests (no broker needed)
// =============================================================================

func TestPublishValidation(t *testing.T) {
	c := &Client{subs: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "graylogic/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "graylogic/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subs: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("graylogic/test", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("graylogic/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if c.SubscriptionCount() != 0 || len(c.Subscriptions()) != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestHealthDetails_NotConnected(t *testing.T) {
	c := &Client{subs: map[string]subscription{"graylogic/a": {}, "graylogic/b": {}}}

	d := c.HealthDetails()
	if d["connected"] != false {
		t.Errorf("connected = %v, want false", d["connected"])
	}
	if d["subscriptions"] != 2 {
		t.Errorf("subscriptions = %v, want 2", d["subscriptions"])
	}
}

func TestPublishJSON(t *testing.T) {
	c := &Client{subs: make(map[string]subscription)}

	if err := c.PublishJSON("graylogic/test", math.NaN(), false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON(NaN) error = %v, want ErrPublishFailed", err)
	}
	if err := c.PublishJSON("graylogic/test", map[string]float64{"value": 1}, true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishJSON() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true for unconnected client")
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"PropertyState", Topics{}.PropertyState("humidity-sensor", "level"), "graylogic/things/humidity-sensor/properties/level/state"},
		{"PropertySet", Topics{}.PropertySet("thermostat", "target"), "graylogic/things/thermostat/properties/target/set"},
		{"SensorReading", Topics{}.SensorReading("bme680"), "graylogic/sensor/bme680/reading"},
		{"SystemStatus", Topics{}.SystemStatus(), "graylogic/system/status"},
		{"AllPropertySets", Topics{}.AllPropertySets(), "graylogic/things/+/properties/+/set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestParsePropertyTopic(t *testing.T) {
	tests := []struct {
		topic     string
		wantThing string
		wantProp  string
		wantVerb  string
		wantOK    bool
	}{
		{"graylogic/things/humidity-sensor/properties/level/set", "humidity-sensor", "level", "set", true},
		{"graylogic/things/humidity-sensor/properties/level/state", "humidity-sensor", "level", "state", true},
		{"graylogic/things/humidity-sensor/properties/level/delete", "", "", "", false},
		{"graylogic/things/humidity-sensor/level/set", "", "", "", false},
		{"graylogic/things//properties/level/set", "", "", "", false},
		{"graylogic/sensor/bme680/reading", "", "", "", false},
		{"other/things/a/properties/b/set", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			thing, prop, verb, ok := ParsePropertyTopic(tt.topic)
			if ok != tt.wantOK || thing != tt.wantThing || prop != tt.wantProp || verb != tt.wantVerb {
				t.Errorf("ParsePropertyTopic() = %q, %q, %q, %v, want %q, %q, %q, %v",
					thing, prop, verb, ok, tt.wantThing, tt.wantProp, tt.wantVerb, tt.wantOK)
			}
		})
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *mockLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
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

func TestWrapHandler_RecoversPanic(t *testing.T) {
	logger := &mockLogger{}
	c := &Client{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("bad payload")
	})
	wrapped(nil, fakeMessage{topic: "graylogic/things/a/properties/b/set"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1", len(logger.errors))
	}
}

func TestWrapHandler_LogsError(t *testing.T) {
	logger := &mockLogger{}
	c := &Client{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) error {
		return errors.New("rejected")
	})
	wrapped(nil, fakeMessage{topic: "graylogic/sensor/bme680/reading", payload: []byte("{}")})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1", len(logger.warns))
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := &Client{}
	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("ignored")
	})
	wrapped(nil, fakeMessage{topic: "x"}) // must not propagate
}
