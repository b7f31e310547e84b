package model

import "time"

// Transition records one reduced message and the state it produced.
// It is the canonical type for storage, OTLP export and the stats API.
type Transition struct {
	Seq          uint64    `json:"seq"`
	At           time.Time `json:"at"`
	Message      string    `json:"message"` // Increment/SearchTyped/NewRandomNumber/KeyPressed/ClockTick
	Payload      string    `json:"payload,omitempty"`
	ClickCount   int       `json:"click_count"`
	SearchText   string    `json:"search_text"`
	RandomNumber int       `json:"random_number"`
	ClockTime    string    `json:"clock_time,omitempty"` // empty until the first tick
	Rendered     bool      `json:"rendered"`
	Cards        int       `json:"cards"` // number of course cards in the rendered tree
}

// KeyEvent is a key press forwarded to observability instead of being stored in state.
type KeyEvent struct {
	Seq uint64    `json:"seq"`
	At  time.Time `json:"at"`
	Key string    `json:"key"`
}

// MessageCount represents a message name and how often it was reduced.
type MessageCount struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}
