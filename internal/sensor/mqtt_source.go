package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/mqtt"
)

// Subscriber is the subset of the MQTT client used by MQTTSource.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTSource serves the latest reading published by an external driver
// process. Read never touches the network: it returns whatever arrived last.
type MQTTSource struct {
	sub    Subscriber
	topic  string
	maxAge time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	latest   Reading
	received bool
}

// NewMQTTSource creates a source for sensor sensorID. A zero maxAge
// disables the staleness check.
func NewMQTTSource(sub Subscriber, sensorID string, maxAge time.Duration) *MQTTSource {
	return &MQTTSource{
		sub:    sub,
		topic:  mqtt.Topics{}.SensorReading(sensorID),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Topic returns the subscribed reading topic.
func (s *MQTTSource) Topic() string {
	return s.topic
}

// Start subscribes to the reading topic.
func (s *MQTTSource) Start() error {
	if err := s.sub.Subscribe(s.topic, 1, s.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topic, err)
	}
	return nil
}

// Stop unsubscribes from the reading topic.
func (s *MQTTSource) Stop() error {
	return s.sub.Unsubscribe(s.topic)
}

// handleMessage decodes a reading payload. A missing timestamp is replaced
// by the receive time.
func (s *MQTTSource) handleMessage(_ string, payload []byte) error {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("decoding reading: %w", err)
	}
	if r.Time.IsZero() {
		r.Time = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Out-of-order retained messages must not replace a newer reading.
	if s.received && r.Time.Before(s.latest.Time) {
		return nil
	}
	s.latest = r
	s.received = true
	return nil
}

// Read returns the latest reading.
//
// Returns:
//   - ErrNoReading before any message has arrived
//   - ErrStaleReading when the reading is older than maxAge
func (s *MQTTSource) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrProducer, err)
	}

	s.mu.RLock()
	r, ok := s.latest, s.received
	s.mu.RUnlock()

	if !ok {
		return Reading{}, ErrNoReading
	}
	if s.maxAge > 0 {
		if age := s.now().Sub(r.Time); age > s.maxAge {
			return Reading{}, fmt.Errorf("%w: age %s exceeds %s", ErrStaleReading, age.Round(time.Second), s.maxAge)
		}
	}
	return r, nil
}
