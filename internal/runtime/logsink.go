package runtime

import (
	"log"

	"github.com/rustacademy/academy/internal/model"
)

// LogSink writes key presses to the standard logger. Transitions are only
// logged when Verbose is set.
type LogSink struct {
	Verbose bool
}

func (s LogSink) RecordTransition(t model.Transition) {
	if !s.Verbose {
		return
	}
	log.Printf("runtime: #%d %s clicks=%d search=%q random=%d rendered=%t",
		t.Seq, t.Message, t.ClickCount, t.SearchText, t.RandomNumber, t.Rendered)
}

func (s LogSink) RecordKey(k model.KeyEvent) {
	log.Printf("runtime: key %q", k.Key)
}
