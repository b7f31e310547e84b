// Package eventsource adapts host event producers (TCP bridges, stdin, the
// host clock) to a common line channel consumed by the ingest processor.
package eventsource

import "github.com/rustacademy/academy/internal/model"

// Source is a producer of source-tagged event lines.
type Source interface {
	Lines() <-chan model.IngestEnvelope // closed when the source stops
	Stop()                              // idempotent shutdown
	Name() string                       // "tcp", "stdin", "clock"
}
