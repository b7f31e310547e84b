package model

import "time"

// Shared defaults used by both the service and TUI binaries.
const (
	DefaultUpdateInterval = 1 * time.Second
	DefaultTickInterval   = 1 * time.Second
	DefaultClockFormat    = "15:04:05"
	DefaultInboxSize      = 256
)
