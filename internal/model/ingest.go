package model

// IngestEnvelope carries one raw host event line with source metadata.
// It is the transport contract between event sources and the line processor.
type IngestEnvelope struct {
	Source string
	Line   string
	// Closed marks the end of Source. Line is empty.
	Closed bool
}
