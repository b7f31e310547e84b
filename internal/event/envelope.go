// Package event is the single translation boundary between named host events
// and the application's closed message set.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rustacademy/academy/internal/app"
)

// LegacyClockTick is the clock event name used by the browser host.
const LegacyClockTick = "OnClockTick"

// Envelope is a named host event with an optional string payload.
type Envelope struct {
	Name    string  `json:"name" msgpack:"name"`
	Payload *string `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// New builds an envelope carrying payload.
func New(name, payload string) Envelope {
	return Envelope{Name: name, Payload: &payload}
}

// Bare builds an envelope without payload.
func Bare(name string) Envelope {
	return Envelope{Name: name}
}

// PayloadString returns the payload or "" when absent.
func (e Envelope) PayloadString() string {
	if e.Payload == nil {
		return ""
	}
	return *e.Payload
}

// Decode translates an envelope into a message.
func Decode(e Envelope) (app.Msg, error) {
	name := strings.TrimSpace(e.Name)
	switch name {
	case app.NameIncrement:
		return app.Increment{}, nil
	case app.NameNewRandomNumber:
		return app.NewRandomNumber{}, nil
	case app.NameSearchTyped:
		if e.Payload == nil {
			return nil, fmt.Errorf("%w: %s requires text", ErrInvalidPayload, name)
		}
		return app.SearchTyped{Text: *e.Payload}, nil
	case app.NameKeyPressed:
		if e.Payload == nil || *e.Payload == "" {
			return nil, fmt.Errorf("%w: %s requires a key", ErrInvalidPayload, name)
		}
		return app.KeyPressed{Key: *e.Payload}, nil
	case app.NameClockTick, LegacyClockTick:
		if e.Payload == nil {
			return nil, fmt.Errorf("%w: %s requires a time", ErrInvalidPayload, name)
		}
		return app.ClockTick{Time: *e.Payload}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Name)
}

// Encode translates a message into its envelope.
func Encode(msg app.Msg) Envelope {
	switch m := msg.(type) {
	case app.SearchTyped:
		return New(m.Name(), m.Text)
	case app.KeyPressed:
		return New(m.Name(), m.Key)
	case app.ClockTick:
		return New(m.Name(), m.Time)
	}
	return Bare(msg.Name())
}

// Name returns the wire name of msg.
func Name(msg app.Msg) string {
	return msg.Name()
}

// DecodeJSON parses a JSON host event. Besides the envelope object it accepts
// the externally tagged form used by the browser host: a bare string for
// payload-less events ("Increment") or a single key object
// ({"OnClockTick": "12:00:00"}).
func DecodeJSON(data []byte) (Envelope, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty event", ErrInvalidPayload)
	}

	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return Bare(name), nil
	case '{':
	default:
		return Envelope{}, fmt.Errorf("%w: event must be an object or string", ErrInvalidPayload)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if nameRaw, ok := raw["name"]; ok {
		var e Envelope
		if err := json.Unmarshal(nameRaw, &e.Name); err != nil {
			return Envelope{}, fmt.Errorf("%w: name: %v", ErrInvalidPayload, err)
		}
		if p, ok := raw["payload"]; ok && string(p) != "null" {
			var s string
			if err := json.Unmarshal(p, &s); err != nil {
				return Envelope{}, fmt.Errorf("%w: payload: %v", ErrInvalidPayload, err)
			}
			e.Payload = &s
		}
		return e, nil
	}

	if len(raw) != 1 {
		return Envelope{}, fmt.Errorf("%w: tagged event must have exactly one key", ErrInvalidPayload)
	}
	for name, p := range raw {
		var s string
		if err := json.Unmarshal(p, &s); err != nil {
			return Envelope{}, fmt.Errorf("%w: payload: %v", ErrInvalidPayload, err)
		}
		return New(name, s), nil
	}
	return Envelope{}, fmt.Errorf("%w: empty event", ErrInvalidPayload)
}

// EncodeJSON marshals an envelope as a JSON object.
func EncodeJSON(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeMsgpack parses a msgpack encoded envelope.
func DecodeMsgpack(data []byte) (Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: msgpack: %v", ErrInvalidPayload, err)
	}
	return e, nil
}

// EncodeMsgpack marshals an envelope with msgpack.
func EncodeMsgpack(e Envelope) ([]byte, error) {
	return msgpack.Marshal(e)
}
