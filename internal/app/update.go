package app

// Init builds the starting state.
func Init(env Env) State {
	return State{RandomNumber: env.random()}
}

// Update applies msg to s. It is total: every message yields a defined state.
// Every transition except KeyPressed clears the render suppression flag.
func Update(msg Msg, s State, env Env) (State, []Effect) {
	s.SkipNextRender = false

	switch m := msg.(type) {
	case Increment:
		s.ClickCount++
	case SearchTyped:
		s.SearchText = m.Text
	case NewRandomNumber:
		s.RandomNumber = env.random()
	case KeyPressed:
		s.SkipNextRender = true
		return s, []Effect{KeyLogged{Key: m.Key}}
	case ClockTick:
		s = s.withClock(m.Time)
	}
	return s, nil
}
