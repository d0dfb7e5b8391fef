package mqtt

import (
	"fmt"
	"sort"
)

// Subscribe registers handler for topic, which may contain wildcards:
//
//	graylogic/things/+/properties/+/set   every property write
//	graylogic/sensor/+/reading            every sensor
//
// The subscription is tracked and replayed after reconnects. Subscribing
// again to the same topic replaces the handler.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	if err := waitToken(c.conn.Subscribe(topic, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		c.subMu.Lock()
		delete(c.subs, topic)
		c.subMu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe stops tracking topic and removes it at the broker. Messages
// already in flight may still be delivered.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subs, topic)
	c.subMu.Unlock()

	return waitToken(c.conn.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

// Subscriptions returns the tracked topic filters, sorted.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}

// HealthDetails reports connection and subscription state for /health.
func (c *Client) HealthDetails() map[string]any {
	return map[string]any{
		"connected":     c.IsConnected(),
		"subscriptions": c.SubscriptionCount(),
	}
}
