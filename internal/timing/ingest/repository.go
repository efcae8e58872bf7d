package ingest

import "context"

// DeadLetterRecord is the payload written to the dead-letter sink for a
// message the pipeline could not process.
type DeadLetterRecord struct {
	Error         string `json:"error"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
	Partition     string `json:"partition"`
	Offset        string `json:"offset"`
	IngestedAt    string `json:"ingested_at"`
}

// DeadLetterSink receives messages the pipeline gives up on: malformed
// payloads and identity resolutions that exhausted their retry budget.
type DeadLetterSink interface {
	Send(ctx context.Context, rec DeadLetterRecord) error
}
