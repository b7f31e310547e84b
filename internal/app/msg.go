package app

// Message names as they cross host boundaries.
const (
	NameIncrement       = "Increment"
	NameSearchTyped     = "SearchTyped"
	NameNewRandomNumber = "NewRandomNumber"
	NameKeyPressed      = "KeyPressed"
	NameClockTick       = "ClockTick"
)

// Msg is the closed set of state transition triggers.
type Msg interface {
	Name() string
	isMsg()
}

// Increment counts a purchase or download click.
type Increment struct{}

// SearchTyped replaces the search text.
type SearchTyped struct{ Text string }

// NewRandomNumber draws a fresh value from the host random source.
type NewRandomNumber struct{}

// KeyPressed reports a raw key-down. It never changes data and suppresses
// the next render.
type KeyPressed struct{ Key string }

// ClockTick carries an opaque formatted time from the host clock.
type ClockTick struct{ Time string }

func (Increment) Name() string       { return NameIncrement }
func (SearchTyped) Name() string     { return NameSearchTyped }
func (NewRandomNumber) Name() string { return NameNewRandomNumber }
func (KeyPressed) Name() string      { return NameKeyPressed }
func (ClockTick) Name() string       { return NameClockTick }

func (Increment) isMsg()       {}
func (SearchTyped) isMsg()     {}
func (NewRandomNumber) isMsg() {}
func (KeyPressed) isMsg()      {}
func (ClockTick) isMsg()       {}

// Effect is a side request produced by Update for the runtime to carry out.
type Effect interface {
	isEffect()
}

// KeyLogged asks the runtime to record a key press with its sinks.
type KeyLogged struct{ Key string }

func (KeyLogged) isEffect() {}
