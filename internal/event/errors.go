package event

import "errors"

var (
	// ErrUnknownEvent is returned for event names outside the message set.
	ErrUnknownEvent = errors.New("event: unknown event")
	// ErrInvalidPayload is returned when a payload is missing or undecodable.
	ErrInvalidPayload = errors.New("event: invalid payload")
)
