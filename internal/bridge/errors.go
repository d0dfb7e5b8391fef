package bridge

import "errors"

var (
	// ErrInvalidPayload indicates a set message that could not be decoded.
	ErrInvalidPayload = errors.New("bridge: invalid set payload")

	// ErrInvalidTopic indicates a message on a topic outside the property tree.
	ErrInvalidTopic = errors.New("bridge: invalid property topic")
)
