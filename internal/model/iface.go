package model

// TransitionSink receives runtime observations. Implementations must not block
// the caller on IO.
type TransitionSink interface {
	RecordTransition(t Transition)
	RecordKey(k KeyEvent)
}

// StatsQuerier provides read-only queries on recorded transitions.
type StatsQuerier interface {
	TotalTransitions() (int64, error)
	MessageCounts() ([]MessageCount, error)
	RecentKeys(limit int) ([]KeyEvent, error)
}

// TransitionWriter provides append-oriented writes for recorded observations.
type TransitionWriter interface {
	InsertTransitionBatch(records []*Transition) error
	InsertKeyBatch(records []*KeyEvent) error
}
