// Package app holds the academy application core: state, messages, the pure
// reducer and the pure view builder. Nothing here performs I/O or blocks.
package app

// State is the single application root. It is a value: every transition
// returns a new State and leaves the old one untouched.
type State struct {
	ClickCount     int     `json:"clickCount"`
	SearchText     string  `json:"searchText"`
	RandomNumber   int     `json:"randomNumber"`
	ClockTime      *string `json:"clockTime"`
	SkipNextRender bool    `json:"skipNextRender"`
}

// Clock returns the last clock tick value, if one has arrived.
func (s State) Clock() (string, bool) {
	if s.ClockTime == nil {
		return "", false
	}
	return *s.ClockTime, true
}

// withClock returns a copy of s holding its own clock string.
func (s State) withClock(t string) State {
	s.ClockTime = &t
	return s
}
