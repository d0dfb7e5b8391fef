package bridge

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// StateMessage is published retained on a property state topic.
type StateMessage struct {
	ThingID   string    `json:"thing_id"`
	Property  string    `json:"property"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// SetMessage is accepted on a property set topic.
type SetMessage struct {
	// Value is required; a missing value is rejected rather than read as zero.
	Value *float64 `json:"value"`

	// Source optionally names the writer for logging.
	Source string `json:"source,omitempty"`
}

// parseSetMessage decodes and validates a set payload.
func parseSetMessage(payload []byte) (SetMessage, error) {
	var msg SetMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return SetMessage{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.Value == nil {
		return SetMessage{}, fmt.Errorf("%w: value is required", ErrInvalidPayload)
	}
	if math.IsNaN(*msg.Value) || math.IsInf(*msg.Value, 0) {
		return SetMessage{}, fmt.Errorf("%w: value must be finite", ErrInvalidPayload)
	}
	return msg, nil
}
