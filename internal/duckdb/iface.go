package duckdb

import "github.com/rustacademy/academy/internal/model"

var (
	_ model.TransitionWriter = (*Store)(nil)
	_ model.StatsQuerier     = (*Store)(nil)
	_ model.TransitionSink   = (*InsertBuffer)(nil)
)
