package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustacademy/academy/internal/app"
)

func TestDecodeKnownEvents(t *testing.T) {
	tests := []struct {
		name string
		in   Envelope
		want app.Msg
	}{
		{"increment", Bare("Increment"), app.Increment{}},
		{"increment ignores payload", New("Increment", "x"), app.Increment{}},
		{"random", Bare("NewRandomNumber"), app.NewRandomNumber{}},
		{"search", New("SearchTyped", "Gitdb"), app.SearchTyped{Text: "Gitdb"}},
		{"search empty", New("SearchTyped", ""), app.SearchTyped{Text: ""}},
		{"key", New("KeyPressed", "Enter"), app.KeyPressed{Key: "Enter"}},
		{"clock", New("ClockTick", "12:00:00"), app.ClockTick{Time: "12:00:00"}},
		{"legacy clock", New("OnClockTick", "12:00:01"), app.ClockTick{Time: "12:00:01"}},
		{"trimmed name", Bare(" Increment "), app.Increment{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   Envelope
		want error
	}{
		{"unknown", Bare("Explode"), ErrUnknownEvent},
		{"empty name", Bare(""), ErrUnknownEvent},
		{"case differs", Bare("increment"), ErrUnknownEvent},
		{"search without text", Bare("SearchTyped"), ErrInvalidPayload},
		{"key without key", Bare("KeyPressed"), ErrInvalidPayload},
		{"key empty", New("KeyPressed", ""), ErrInvalidPayload},
		{"clock without time", Bare("ClockTick"), ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msgs := []app.Msg{
		app.Increment{},
		app.NewRandomNumber{},
		app.SearchTyped{Text: "Heimdall"},
		app.KeyPressed{Key: "a"},
		app.ClockTick{Time: "09:30:00"},
	}
	for _, m := range msgs {
		env := Encode(m)
		assert.Equal(t, Name(m), env.Name)
		got, err := Decode(env)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	assert.Nil(t, Encode(app.Increment{}).Payload)
}

func TestDecodeJSONForms(t *testing.T) {
	tests := []struct {
		in   string
		want Envelope
	}{
		{`{"name":"SearchTyped","payload":"Onat"}`, New("SearchTyped", "Onat")},
		{`{"name":"Increment"}`, Bare("Increment")},
		{`{"name":"Increment","payload":null}`, Bare("Increment")},
		{`"NewRandomNumber"`, Bare("NewRandomNumber")},
		{`{"OnClockTick":"10:11:12"}`, New("OnClockTick", "10:11:12")},
		{`  {"KeyPressed":"q"}  `, New("KeyPressed", "q")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DecodeJSON([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSONRejects(t *testing.T) {
	for _, in := range []string{
		``,
		`42`,
		`[1,2]`,
		`{"name":5}`,
		`{"name":"SearchTyped","payload":7}`,
		`{"a":"1","b":"2"}`,
		`{"KeyPressed":3}`,
		`{`,
	} {
		_, err := DecodeJSON([]byte(in))
		assert.ErrorIs(t, err, ErrInvalidPayload, "input %q", in)
	}
}

func TestJSONEncodeMatchesDecode(t *testing.T) {
	data, err := EncodeJSON(New("SearchTyped", "x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"SearchTyped","payload":"x"}`, string(data))

	back, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, New("SearchTyped", "x"), back)
}

func TestMsgpack(t *testing.T) {
	data, err := EncodeMsgpack(New("ClockTick", "08:00:00"))
	require.NoError(t, err)

	back, err := DecodeMsgpack(data)
	require.NoError(t, err)
	assert.Equal(t, "ClockTick", back.Name)
	assert.Equal(t, "08:00:00", back.PayloadString())

	bare, err := EncodeMsgpack(Bare("Increment"))
	require.NoError(t, err)
	back, err = DecodeMsgpack(bare)
	require.NoError(t, err)
	assert.Nil(t, back.Payload)

	_, err = DecodeMsgpack([]byte{0xc1})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
