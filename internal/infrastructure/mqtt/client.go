package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/config"
)

// Client is the connection to the Gray Logic Things broker. It carries
// retained property state, external property writes and raw sensor
// readings, and survives broker restarts: paho reconnects with backoff and
// every tracked subscription is replayed on each new session.
//
// All methods are safe for concurrent use.
type Client struct {
	conn pahomqtt.Client
	cfg  config.MQTTConfig

	connected atomic.Bool

	subMu sync.RWMutex
	subs  map[string]subscription

	hookMu       sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// subscription is replayed after every reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho's delivery goroutine and must return quickly. A
// returned error is logged; it does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker described by cfg.
//
// The connection registers a retained offline will on
// graylogic/system/status, publishes a retained online status once
// connected, and restores subscriptions after every reconnect.
//
// Returns ErrConnectionFailed (wrapping the cause or ErrTimeout) when the
// first connection attempt does not succeed.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, o *pahomqtt.ClientOptions) {
		c.log().Info("MQTT reconnecting", "client_id", o.ClientID)
	})

	c.conn = pahomqtt.NewClient(opts)
	if err := waitToken(c.conn.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The connect handler runs asynchronously; mark the session live now so
	// callers can publish straight away.
	c.connected.Store(true)
	return c, nil
}

// onConnected runs on the initial connect and on every reconnect.
func (c *Client) onConnected() {
	c.connected.Store(true)

	c.subMu.RLock()
	for topic, sub := range c.subs {
		token := c.conn.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
		if err := waitToken(token, defaultPublishTimeout, ErrSubscribeFailed); err != nil {
			c.log().Warn("MQTT subscription not restored", "topic", topic, "error", err)
		}
	}
	c.subMu.RUnlock()

	c.conn.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, statusPayload(statusOnline, "", c.cfg.Broker.ClientID))

	c.hookMu.RLock()
	hook := c.onConnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)
	c.log().Warn("MQTT connection lost", "error", err)

	c.hookMu.RLock()
	hook := c.onDisconnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// Close publishes a graceful offline status (distinct from the crash will)
// and disconnects. Closing a client that never connected is a no-op.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.conn.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload(statusOffline, reasonGracefulShutdown, c.cfg.Broker.ClientID))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.conn.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known session state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.conn != nil && c.conn.IsConnected()
}

// SetOnConnect sets a callback run after every (re)connect.
func (c *Client) SetOnConnect(callback func()) {
	c.hookMu.Lock()
	c.onConnect = callback
	c.hookMu.Unlock()
}

// SetOnDisconnect sets a callback run when the session is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = callback
	c.hookMu.Unlock()
}

// SetLogger sets the logger for connection events and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.logger = logger
	c.hookMu.Unlock()
}

func (c *Client) log() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

// wrapHandler adapts handler to paho, logging returned errors and
// recovering panics so one bad payload cannot kill the delivery goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

// waitToken waits for token and classifies failure under op.
func waitToken(token pahomqtt.Token, timeout time.Duration, op error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", op, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", op, err)
	}
	return nil
}
